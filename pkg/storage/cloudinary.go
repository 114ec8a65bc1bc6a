package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores attachment blobs in Cloudinary. Keys are slash-separated
// paths and map directly onto Cloudinary public IDs, so the bucket layout
// mirrors the conversation structure.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary-backed storage service.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "storage").Logger(),
	}, nil
}

// Upload stores the blob under the given key and returns its public URL.
func (s *Service) Upload(ctx context.Context, key string, reader io.Reader) (string, error) {
	publicID := sanitizeKey(key)
	if publicID == "" {
		return "", fmt.Errorf("storage key must not be empty")
	}

	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicID,
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("attachment stored")

	return result.SecureURL, nil
}

// sanitizeKey keeps the path structure of the key but strips the file
// extension (Cloudinary appends its own) and characters the API rejects.
func sanitizeKey(key string) string {
	key = strings.Trim(key, "/")
	if key == "" {
		return ""
	}

	key = strings.TrimSuffix(key, path.Ext(key))
	segments := strings.Split(key, "/")
	cleaned := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
				return r
			}
			return '-'
		}, segment)
		segment = strings.Trim(segment, "-")
		if segment != "" {
			cleaned = append(cleaned, segment)
		}
	}

	return strings.Join(cleaned, "/")
}
