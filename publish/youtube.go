// Package publish uploads a finished video to YouTube. Strictly post-pipeline
// glue, opt-in from the CLI; never part of the run's dependency graph.
package publish

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"video-factory/config"
	"video-factory/types"
)

// Credentials is the OAuth material main resolves from the environment
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Uploader pushes final videos to YouTube via the Data API v3
type Uploader struct {
	cfg   config.PublishConfig
	creds Credentials
}

// New creates an Uploader
func New(cfg config.PublishConfig, creds Credentials) (*Uploader, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, fmt.Errorf("youtube credentials incomplete: client id, secret and refresh token are all required")
	}
	return &Uploader{cfg: cfg, creds: creds}, nil
}

// Run uploads the run's final video and returns its id and watch URL
func (u *Uploader) Run(ctx context.Context, run *types.PipelineRun, title, description string) (string, string, error) {
	if run.FinalVideo == "" {
		return "", "", fmt.Errorf("run %s has no final video to publish", run.ID)
	}
	log.Println("[publish] Authenticating with YouTube API...")

	client := u.oauthClient(ctx)
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", "", fmt.Errorf("youtube service: %w", err)
	}

	if title == "" {
		title = run.ID
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                title,
			Description:          description,
			CategoryId:           u.cfg.CategoryID,
			DefaultLanguage:      u.cfg.DefaultLanguage,
			DefaultAudioLanguage: u.cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: u.cfg.Visibility,
		},
	}

	f, err := os.Open(run.FinalVideo)
	if err != nil {
		return "", "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		log.Printf("[publish] Uploading %q (%.1f MB)...", title, float64(fi.Size())/1024/1024)
	}

	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(f).Do()
	if err != nil {
		return "", "", fmt.Errorf("youtube upload: %w", err)
	}

	url := "https://www.youtube.com/watch?v=" + uploaded.Id
	log.Printf("[publish] ✅ Uploaded: %s", url)
	return uploaded.Id, url, nil
}

func (u *Uploader) oauthClient(ctx context.Context) *http.Client {
	conf := &oauth2.Config{
		ClientID:     u.creds.ClientID,
		ClientSecret: u.creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: u.creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh on first use
	}
	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token))
}
