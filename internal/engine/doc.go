// Package engine contains the file-tree pattern-scanning core shared by the
// sensitive-data and dangerous-function checks. It walks the target tree,
// prunes excluded directories, evaluates ordered rules line by line with
// first-match-wins semantics, and returns findings in discovery order. This
// package is internal; external consumers should use the facade in pkg/core.
package engine
