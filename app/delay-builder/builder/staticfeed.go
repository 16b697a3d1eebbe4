package builder

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/transitdatalab/delaylake/foundation/httpclient"
)

// StaticSource obtains the static timetable files effective for a date,
// returning local paths to the trips and stop_times csv files inside
// scratchDir.
type StaticSource interface {
	FetchStatic(scratchDir string, day string) (tripsPath string, stopTimesPath string, err error)
}

// MobilityDatabaseSource retrieves static GTFS archives through the
// Mobility Database registry, selecting the newest dataset published at or
// before the target date.
type MobilityDatabaseSource struct {
	Log          *log.Logger
	RefreshToken string
	// APIBaseURL is the registry root, normally
	// https://api.mobilitydatabase.org/v1
	APIBaseURL string
	// FeedID names the registry feed, for example mdb-511
	FeedID string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type registryDataset struct {
	DownloadedAt string `json:"downloaded_at"`
	HostedURL    string `json:"hosted_url"`
}

// FetchStatic implements StaticSource. Any failure obtaining or unpacking
// the archive is a FetchError for the day.
func (s *MobilityDatabaseSource) FetchStatic(scratchDir string, day string) (string, string, error) {
	tripsPath, stopTimesPath, err := s.fetch(scratchDir, day)
	if err != nil {
		return "", "", &FetchError{Date: day, Source: "static", Err: err}
	}
	return tripsPath, stopTimesPath, nil
}

func (s *MobilityDatabaseSource) fetch(scratchDir string, day string) (string, string, error) {
	targetDay, err := time.Parse("2006-01-02", day)
	if err != nil {
		return "", "", fmt.Errorf("invalid target date %q: %w", day, err)
	}

	var token tokenResponse
	err = httpclient.PostJSON(s.APIBaseURL+"/tokens",
		map[string]string{"refresh_token": s.RefreshToken}, &token)
	if err != nil {
		return "", "", fmt.Errorf("authenticating with feed registry: %w", err)
	}

	var datasets []registryDataset
	err = httpclient.GetJSON(fmt.Sprintf("%s/gtfs_feeds/%s/datasets", s.APIBaseURL, s.FeedID),
		map[string]string{"Authorization": "Bearer " + token.AccessToken}, &datasets)
	if err != nil {
		return "", "", fmt.Errorf("listing registry datasets: %w", err)
	}

	hostedURL, publishedAt, err := selectDataset(datasets, targetDay)
	if err != nil {
		return "", "", err
	}
	s.Log.Printf("selected static dataset published %s for service date %s", publishedAt, day)

	zipPath := filepath.Join(scratchDir, "static_gtfs.zip")
	if _, err = httpclient.DownloadRemoteFile(zipPath, hostedURL); err != nil {
		return "", "", fmt.Errorf("downloading static archive: %w", err)
	}
	defer func() {
		_ = os.Remove(zipPath)
	}()

	tripsPath := filepath.Join(scratchDir, "trips.txt")
	stopTimesPath := filepath.Join(scratchDir, "stop_times.txt")
	err = extractZipFiles(zipPath, map[string]string{
		"trips.txt":      tripsPath,
		"stop_times.txt": stopTimesPath,
	})
	if err != nil {
		return "", "", err
	}
	return tripsPath, stopTimesPath, nil
}

// selectDataset picks the newest registry dataset published at or before
// targetDay.
func selectDataset(datasets []registryDataset, targetDay time.Time) (string, string, error) {
	bestURL := ""
	bestDay := ""
	var bestAt time.Time
	for _, dataset := range datasets {
		if len(dataset.DownloadedAt) < 10 {
			continue
		}
		publishedAt, err := time.Parse("2006-01-02", dataset.DownloadedAt[:10])
		if err != nil {
			continue
		}
		if publishedAt.After(targetDay) {
			continue
		}
		if bestURL == "" || publishedAt.After(bestAt) {
			bestURL = dataset.HostedURL
			bestAt = publishedAt
			bestDay = publishedAt.Format("2006-01-02")
		}
	}
	if bestURL == "" {
		return "", "", fmt.Errorf("no static dataset published at or before %s", targetDay.Format("2006-01-02"))
	}
	return bestURL, bestDay, nil
}

// extractZipFiles copies the named archive members to their destination
// paths. Members may live at the archive root or inside one subfolder.
func extractZipFiles(zipPath string, wanted map[string]string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("opening static archive: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	found := make(map[string]bool, len(wanted))
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		destination, isWanted := wanted[filepath.Base(file.Name)]
		if !isWanted || found[filepath.Base(file.Name)] {
			continue
		}
		if err = copyZipFile(file, destination); err != nil {
			return err
		}
		found[filepath.Base(file.Name)] = true
	}
	for name := range wanted {
		if !found[name] {
			return fmt.Errorf("static archive is missing %s", name)
		}
	}
	return nil
}

func copyZipFile(file *zip.File, destination string) error {
	in, err := file.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()
	_, err = io.Copy(out, in)
	return err
}
