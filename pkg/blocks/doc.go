// Package blocks partitions a generation schema into sections and manages the
// named blocks a user creates in each of them. A Workspace is the explicit
// state object for one endpoint: it owns every block, the saved form state of
// each block and the active selection.
package blocks
