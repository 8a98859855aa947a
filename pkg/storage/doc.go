// Package storage manages the download directory of albumzip.
//
// Finished exports keep the name the hosting service gave them, prefixed with
// the part number they belong to:
//
//	{identifier}_{original}
//	{identifier}_{base}_{n}{ext}   when the first form is already taken
//
// Renames never replace an existing file, so repeated runs or duplicated part
// numbers in the spreadsheet keep every earlier download.
package storage
