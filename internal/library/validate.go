package library

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/jbx/internal/shared"
)

// youtubePatterns are the URL shapes the server accepts for downloads.
var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/embed/[\w-]+`),
}

// ValidateURL reports whether raw is a downloadable YouTube URL.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}
	for _, re := range youtubePatterns {
		if re.MatchString(raw) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", shared.ErrInvalidURL, raw)
}
