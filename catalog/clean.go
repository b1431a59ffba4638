package catalog

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// CleanMode names a catalog cleanup.
type CleanMode string

const (
	CleanDuplicates CleanMode = "duplicates"
	CleanNoImages   CleanMode = "no-images"
	CleanLast       CleanMode = "last"
	CleanAll        CleanMode = "all"
)

// CleanResult reports what a cleanup kept.
type CleanResult struct {
	Mode    CleanMode `json:"mode"`
	Before  int       `json:"before"`
	After   int       `json:"after"`
	Removed int       `json:"removed"`
}

// Reasons a jersey image fails the check.
const (
	ImageNone         = "no image"
	ImageMissingFile  = "file not found"
	ImageBadExtension = "unsupported extension"
)

// ImageProblem is one jersey image reference that cannot be served.
type ImageProblem struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	File   string `json:"file,omitempty"`
	Reason string `json:"reason"`
}

// ImageReport is the result of checking jersey images against the assets
// directory. Orphans are files no jersey references, as paths relative to
// the assets directory.
type ImageReport struct {
	Checked  int            `json:"checked"`
	Valid    int            `json:"valid"`
	Problems []ImageProblem `json:"problems"`
	Orphans  []string       `json:"orphans"`
	Removed  int            `json:"removed"`
	DryRun   bool           `json:"dry_run,omitempty"`
}

// ImageExists reports whether a local image reference names a file on disk.
type ImageExists func(ref string) bool

// Clean applies mode to items and returns the kept items. n is only used by
// CleanLast, which removes the n most recently appended jerseys and must
// leave at least one. Image checks look at extensions only.
func Clean(items []Jersey, mode CleanMode, n int) ([]Jersey, CleanResult, error) {
	return CleanWith(items, mode, n, nil)
}

// CleanWith is Clean with local image references also checked against
// the disk through exists.
func CleanWith(items []Jersey, mode CleanMode, n int, exists ImageExists) ([]Jersey, CleanResult, error) {
	var kept []Jersey
	switch mode {
	case CleanDuplicates:
		kept = Dedupe(items)
	case CleanNoImages:
		kept = WithValidImages(items, exists)
	case CleanLast:
		if n <= 0 || n >= len(items) {
			return nil, CleanResult{}, fmt.Errorf("%w: last needs a count between 1 and %d", ErrInvalid, len(items)-1)
		}
		kept = DropLast(items, n)
	case CleanAll:
		kept = WithValidImages(Dedupe(items), exists)
	default:
		return nil, CleanResult{}, fmt.Errorf("%w: unknown clean mode %q", ErrInvalid, mode)
	}
	return kept, CleanResult{
		Mode:    mode,
		Before:  len(items),
		After:   len(kept),
		Removed: len(items) - len(kept),
	}, nil
}

// Dedupe keeps the first item for each title, compared case-insensitively,
// falling back to the name. Items with neither are always kept.
func Dedupe(items []Jersey) []Jersey {
	seen := make(map[string]struct{}, len(items))
	out := make([]Jersey, 0, len(items))
	for _, it := range items {
		key := strings.ToLower(strings.TrimSpace(it.Title))
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(it.Name))
		}
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}

// WithImages drops items that have no usable image reference.
func WithImages(items []Jersey) []Jersey {
	return WithValidImages(items, nil)
}

// WithValidImages drops items without a usable image. A nil exists skips
// the disk check.
func WithValidImages(items []Jersey, exists ImageExists) []Jersey {
	out := make([]Jersey, 0, len(items))
	for _, it := range items {
		if HasValidImage(it, exists) {
			out = append(out, it)
		}
	}
	return out
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// IsRemoteImage reports whether ref is an absolute http(s) URL.
func IsRemoteImage(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// HasImageExt reports whether ref ends in a supported image extension.
func HasImageExt(ref string) bool {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return imageExts[strings.ToLower(path.Ext(ref))]
}

// ValidImageRef reports whether ref can be shown. Remote URLs need an image
// extension or none at all, since CDNs often serve extensionless paths.
// Local references need an image extension and, when exists is set, a file.
func ValidImageRef(ref string, exists ImageExists) bool {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return false
	case IsRemoteImage(ref):
		u, err := url.Parse(ref)
		if err != nil || u.Host == "" {
			return false
		}
		return path.Ext(u.Path) == "" || HasImageExt(u.Path)
	case !HasImageExt(ref):
		return false
	}
	return exists == nil || exists(ref)
}

// HasValidImage reports whether the thumbnail or any image of j is a
// valid reference.
func HasValidImage(j Jersey, exists ImageExists) bool {
	if ValidImageRef(j.Thumbnail, exists) {
		return true
	}
	for _, ref := range j.Images {
		if ValidImageRef(ref, exists) {
			return true
		}
	}
	return false
}

// DropLast removes the last n items in document order.
func DropLast(items []Jersey, n int) []Jersey {
	if n <= 0 {
		return append([]Jersey(nil), items...)
	}
	if n >= len(items) {
		return nil
	}
	return append([]Jersey(nil), items[:len(items)-n]...)
}
