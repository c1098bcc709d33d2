package filesystem

import "strings"

// Root is the path of the root directory.
const Root = ""

// Split separates a path into its parent directory and final name. A path
// with no separator lives in the root.
func Split(path string) (parent, name string) {
	index := strings.LastIndexByte(path, '/')
	if index < 0 {
		return Root, path
	}
	return path[:index], path[index+1:]
}

// Join appends a child name to a parent path.
func Join(parent, name string) string {
	if parent == Root {
		return name
	}
	return parent + "/" + name
}
