package restore

import "strings"

// DestPath returns the slash-separated path, relative to the target
// directory, that the file (domain, relativePath) is restored to. The
// first hyphen of the domain, if any, becomes a directory separator:
// "AppDomain-com.example.app" and "Documents/a.txt" give
// "AppDomain/com.example.app/Documents/a.txt". Hyphens in relativePath
// are left alone.
func DestPath(domain, relativePath string) string {
	if i := strings.IndexByte(domain, '-'); i >= 0 {
		return domain[:i] + "/" + domain[i+1:] + "/" + relativePath
	}
	return domain + "/" + relativePath
}
