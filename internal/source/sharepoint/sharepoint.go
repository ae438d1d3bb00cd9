package sharepoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"importer/internal/source"
)

// Config configures the document-library source.
type Config struct {
	// BaseURL is the site root, e.g. "https://sp.example.com/sites/imports".
	BaseURL string

	// Library is the server-relative folder holding input files, e.g.
	// "Shared Documents/input".
	Library string

	// ImportedFolder and BrokenFolder are the server-relative destinations
	// for processed files.
	ImportedFolder string
	BrokenFolder   string

	// DownloadConcurrency bounds parallel file downloads; 4 when zero.
	DownloadConcurrency int

	Client ClientConfig
}

// Source lists, downloads, and moves files in a SharePoint document library.
type Source struct {
	cfg    Config
	client *client
}

var (
	_ source.Lister = (*Source)(nil)
	_ source.Mover  = (*Source)(nil)
)

// New validates cfg and returns a Source.
func New(cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("sharepoint: base URL must not be empty")
	}
	if strings.TrimSpace(cfg.Library) == "" {
		return nil, fmt.Errorf("sharepoint: library must not be empty")
	}
	if cfg.ImportedFolder == "" || cfg.BrokenFolder == "" {
		return nil, fmt.Errorf("sharepoint: imported and broken folders must be set")
	}
	if cfg.DownloadConcurrency <= 0 {
		cfg.DownloadConcurrency = 4
	}
	return &Source{cfg: cfg, client: newClient(cfg.Client)}, nil
}

// listing mirrors the document-library file listing payload.
type listing struct {
	Value []struct {
		Name string `json:"Name"`
	} `json:"value"`
}

// List fetches the library's file names and downloads each file with bounded
// concurrency. A failed download is reported on that file only; the listing
// call itself failing fails the batch.
func (s *Source) List(ctx context.Context) ([]source.File, error) {
	listURL := fmt.Sprintf(
		"%s/_api/web/GetFolderByServerRelativeUrl('%s')/Files?$select=Name",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(s.cfg.Library),
	)
	resp, err := s.client.do(ctx, http.MethodGet, listURL, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: list files: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sharepoint: list files: status %s", resp.Status)
	}

	var body listing
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("sharepoint: decode listing: %w", err)
	}

	files := make([]source.File, len(body.Value))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.DownloadConcurrency)
	for i, entry := range body.Value {
		g.Go(func() error {
			content, err := s.download(gctx, entry.Name)
			files[i] = source.File{Name: entry.Name, Content: content, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Source) download(ctx context.Context, name string) ([]byte, error) {
	fileURL := fmt.Sprintf(
		"%s/_api/web/GetFileByServerRelativeUrl('%s')/$value",
		strings.TrimRight(s.cfg.BaseURL, "/"),
		url.PathEscape(path.Join(s.cfg.Library, name)),
	)
	resp, err := s.client.do(ctx, http.MethodGet, fileURL, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: download %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sharepoint: download %s: status %s", name, resp.Status)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: download %s: %w", name, err)
	}
	return content, nil
}

// Move relocates name into the imported or broken folder via the MoveTo
// endpoint, overwriting any previous file of the same name there.
func (s *Source) Move(ctx context.Context, name string, dest source.Destination) error {
	folder := s.cfg.ImportedFolder
	if dest == source.DestBroken {
		folder = s.cfg.BrokenFolder
	}
	moveURL := fmt.Sprintf(
		"%s/_api/web/GetFileByServerRelativeUrl('%s')/moveto(newurl='%s',flags=1)",
		strings.TrimRight(s.cfg.BaseURL, "/"),
		url.PathEscape(path.Join(s.cfg.Library, name)),
		url.PathEscape(path.Join(folder, name)),
	)
	resp, err := s.client.do(ctx, http.MethodPost, moveURL, nil, nil)
	if err != nil {
		return fmt.Errorf("sharepoint: move %s to %s: %w", name, dest, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("sharepoint: move %s to %s: status %s", name, dest, resp.Status)
	}
	return nil
}
