// Package batch runs album exports one after another and summarizes the result.
package batch
