package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// documentURIScheme prefixes every document resource URI. Documents are
// served from the chunk store, not the filesystem, so the text remains
// readable after the source file moves or disappears.
const documentURIScheme = "rigqa://document/"

// RegisterResources exposes every indexed document as an MCP resource.
// Safe to call again after more documents are indexed; the SDK keys
// resources by URI, so a re-registered document keeps one entry.
func (s *Server) RegisterResources(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.store.Chunks.Documents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	for _, d := range docs {
		name := d.Name
		s.mcp.AddResource(
			&mcp.Resource{
				Name:        name,
				URI:         documentURIScheme + name,
				Description: fmt.Sprintf("%s (%d chunks, indexed %s)", name, d.ChunkCount, d.IndexedAt.Format("2006-01-02")),
				MIMEType:    mimeTypeForDocument(name),
			},
			func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
				return s.handleReadDocument(ctx, name)
			},
		)
	}

	s.logger.Info("registered resources", "count", len(docs))
	return nil
}

// handleReadDocument serves one document's text from its stored chunks.
func (s *Server) handleReadDocument(ctx context.Context, name string) (*mcp.ReadResourceResult, error) {
	content, err := s.documentText(ctx, name)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      documentURIScheme + name,
				MIMEType: mimeTypeForDocument(name),
				Text:     content,
			},
		},
	}, nil
}

// ListResources returns all available resources.
func (s *Server) ListResources(ctx context.Context) ([]ResourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, err := s.store.Chunks.Documents(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	resources := make([]ResourceInfo, 0, len(docs))
	for _, d := range docs {
		resources = append(resources, ResourceInfo{
			URI:      documentURIScheme + d.Name,
			Name:     d.Name,
			MIMEType: mimeTypeForDocument(d.Name),
		})
	}

	return resources, nil
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := strings.CutPrefix(uri, documentURIScheme)
	if !ok || name == "" {
		return nil, NewResourceNotFoundError(uri)
	}

	content, err := s.documentText(ctx, name)
	if err != nil {
		return nil, err
	}

	return &ResourceContent{
		URI:      uri,
		Content:  content,
		MIMEType: mimeTypeForDocument(name),
	}, nil
}

// documentText joins a document's chunks back into readable text.
// Chunks overlap at the boundaries, so the joined text can repeat a
// sentence across chunk seams.
func (s *Server) documentText(ctx context.Context, name string) (string, error) {
	chunks, err := s.store.Chunks.ChunksByDocument(ctx, name)
	if err != nil {
		return "", MapError(err)
	}
	if len(chunks) == 0 {
		return "", NewResourceNotFoundError(documentURIScheme + name)
	}

	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// mimeTypeForDocument returns the MIME type of the stored text. Chunks
// hold extracted text even for PDF and DOCX sources, so everything is
// plain text except markdown.
func mimeTypeForDocument(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return "text/plain"
	}
}
