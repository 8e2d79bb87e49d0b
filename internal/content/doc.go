// Package content loads the pools: posts from a delimited text file and media files
// from one directory per post type.
//
// Posts file format:
//
//	-- INICIO revenda
//	Text of the post, any number of lines.
//	-- FIM
//
// The type after INICIO is optional; untyped posts get DefaultType.
package content
