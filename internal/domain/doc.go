// Package domain defines core data models and interfaces shared across custodia.
// It contains plain types (wire/state), contracts (interfaces), the fixed
// record names used in protected storage and the error taxonomy.
package domain
