package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultReleaseURL  = "https://api.github.com/repos/wmc1992/npustat/releases/latest"
	updateCheckTimeout = 3 * time.Second
)

type UpdateInfo struct {
	Available      bool
	LatestVersion  string
	CurrentVersion string
	ReleaseURL     string
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// CheckForUpdates compares current with the latest release published at
// releaseURL. Development builds never report an update.
func CheckForUpdates(ctx context.Context, client *http.Client, releaseURL, current string) (UpdateInfo, error) {
	info := UpdateInfo{CurrentVersion: current}
	if current == "dev" {
		return info, nil
	}
	if client == nil {
		client = &http.Client{Timeout: updateCheckTimeout}
	}

	release, err := fetchLatestRelease(ctx, client, releaseURL)
	if err != nil {
		return info, err
	}
	info.LatestVersion = release.TagName
	info.ReleaseURL = release.HTMLURL
	info.Available = newerVersion(current, release.TagName)
	return info, nil
}

func fetchLatestRelease(ctx context.Context, client *http.Client, url string) (*githubRelease, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api returned status %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}
	return &release, nil
}

// newerVersion reports whether latest is a higher major.minor.patch than
// current. Pre-release and build suffixes are ignored.
func newerVersion(current, latest string) bool {
	c, l := versionParts(current), versionParts(latest)
	for i := range c {
		if l[i] != c[i] {
			return l[i] > c[i]
		}
	}
	return false
}

func versionParts(v string) [3]int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var parts [3]int
	for i, p := range strings.SplitN(v, ".", 3) {
		parts[i], _ = strconv.Atoi(p)
	}
	return parts
}
