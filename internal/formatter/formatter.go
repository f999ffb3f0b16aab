// package formatter exports playlists to files (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

// Formats lists the export formats accepted by [Write].
var Formats = []string{"json", "csv", "markdown", "txt"}

// Metadata is the playlist summary written alongside song listings.
type Metadata struct {
	Name           string   `json:"name"`
	SerializedName string   `json:"serialized_name"`
	Tags           []string `json:"tags"`
	Image          string   `json:"image,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
	SongCount      int      `json:"song_count"`
	TotalDuration  int      `json:"total_duration"`
}

// MetadataOf summarises pl without its songs.
func MetadataOf(pl *models.Playlist) Metadata {
	tags := pl.Tags
	if tags == nil {
		tags = []string{}
	}
	return Metadata{
		Name:           pl.Name,
		SerializedName: pl.Key(),
		Tags:           tags,
		Image:          pl.Image,
		CreatedAt:      pl.CreatedAt,
		SongCount:      len(pl.Songs),
		TotalDuration:  pl.TotalDuration(),
	}
}

// ExportToCSV converts a playlist to CSV with columns: Position, ID, Song ID, Title, Filename, Duration, Added
func ExportToCSV(pl *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Song ID", "Title", "Filename", "Duration", "Added"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, song := range pl.Songs {
		record := []string{
			strconv.Itoa(i + 1),
			song.ID,
			song.LibrarySongID,
			song.Title,
			song.Filename,
			strconv.Itoa(song.Duration),
			song.AddedAt,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a playlist to Markdown with an optional cover image
func ExportToMarkdown(pl *models.Playlist, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", pl.Name))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	if len(pl.Tags) > 0 {
		buf.WriteString(fmt.Sprintf("**Tags**: %s\n\n", strings.Join(pl.Tags, ", ")))
	}

	buf.WriteString(fmt.Sprintf("**Songs**: %d\n", len(pl.Songs)))
	buf.WriteString(fmt.Sprintf("**Length**: %s\n\n", shared.FormatDuration(pl.TotalDuration())))

	buf.WriteString("## Songs\n\n")
	for i, song := range pl.Songs {
		buf.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, song.Title, shared.FormatDuration(song.Duration)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a playlist to plain text
func ExportToText(pl *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", pl.Name))
	if len(pl.Tags) > 0 {
		buf.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(pl.Tags, ", ")))
	}
	buf.WriteString(fmt.Sprintf("Songs: %d\n\n", len(pl.Songs)))

	for i, song := range pl.Songs {
		buf.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, song.Title, shared.FormatDuration(song.Duration)))
	}

	return buf.Bytes(), nil
}

// DownloadImage fetches an image and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	SongsFile    string
	MetadataFile string
}

// WriteCSVExport writes {base}_songs.csv and {base}_metadata.json.
//
// Defaults to the playlist's serialized name as the base filename.
func WriteCSVExport(pl *models.Playlist, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = pl.Key()
	}

	csvData, err := ExportToCSV(pl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	songsFile := baseFilepath + "_songs.csv"
	if err := os.WriteFile(songsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := shared.MarshalJSON(MetadataOf(pl), true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{SongsFile: songsFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// MarkdownOpts controls cover image retrieval for Markdown exports.
type MarkdownOpts struct {
	ImageURL string
	Client   *http.Client
	Warn     func(error)
}

// WriteMarkdownExport writes {dir}/README.md and, when opts.ImageURL is set, {dir}/cover.jpg.
//
// A failed cover download is reported through opts.Warn and does not fail the export.
func WriteMarkdownExport(ctx context.Context, pl *models.Playlist, outputDir string, opts MarkdownOpts) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = pl.Key()
	}
	if opts.Warn == nil {
		opts.Warn = func(error) {}
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}

	var coverImageFilename string
	if opts.ImageURL != "" {
		imageData, err := DownloadImage(ctx, opts.Client, opts.ImageURL)
		if err != nil {
			opts.Warn(err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				opts.Warn(fmt.Errorf("failed to save cover image: %w", err))
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(pl, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

// WriteTextExport writes a plain text listing, defaulting to {serialized_name}_songs.txt.
func WriteTextExport(pl *models.Playlist, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_songs.txt", pl.Key())
	}

	textData, err := ExportToText(pl)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport writes the full playlist as indented JSON.
func WriteJSONExport(pl *models.Playlist, path string) (string, error) {
	if path == "" {
		path = pl.Key() + ".json"
	}

	data, err := shared.MarshalJSON(pl, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// Write exports pl into dir using format and returns the files it created.
func Write(ctx context.Context, pl *models.Playlist, format, dir string, md MarkdownOpts) ([]string, error) {
	base := filepath.Join(dir, pl.Key())

	switch format {
	case "csv":
		res, err := WriteCSVExport(pl, base)
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		return []string{res.SongsFile, res.MetadataFile}, nil
	case "markdown", "md":
		res, err := WriteMarkdownExport(ctx, pl, base, md)
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		return res.Files, nil
	case "txt", "text":
		path, err := WriteTextExport(pl, base+"_songs.txt")
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		return []string{path}, nil
	case "json", "":
		path, err := WriteJSONExport(pl, base+".json")
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteManifest writes v as indented JSON to path.
func WriteManifest(v any, path string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
