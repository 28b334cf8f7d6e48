// Package prediction defines the capability used to attach an advisory
// priority score and source label to a decision. Models are trained offline;
// the service only evaluates them.
package prediction
