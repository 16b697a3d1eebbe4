package builder

import (
	"archive/tar"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/transitdatalab/delaylake/foundation/httpclient"
)

// RealtimeSource obtains the observed arrivals for a date, returning local
// paths to the trips and stop_times csv files inside scratchDir.
type RealtimeSource interface {
	FetchRealtime(scratchDir string, day string) (tripsPath string, stopTimesPath string, err error)
}

// ArchiveRealtimeSource downloads the daily realtime archive published as
// subwaydatanyc_<date>_csv.tar.xz and extracts the trips and stop_times
// csv files.
type ArchiveRealtimeSource struct {
	Log *log.Logger
	// BaseURL is the archive host root, normally https://subwaydata.nyc/data
	BaseURL string
}

// FetchRealtime implements RealtimeSource. A missing archive, including a
// date not yet published, is a FetchError for the day.
func (s *ArchiveRealtimeSource) FetchRealtime(scratchDir string, day string) (string, string, error) {
	tripsPath, stopTimesPath, err := s.fetch(scratchDir, day)
	if err != nil {
		return "", "", &FetchError{Date: day, Source: "realtime", Err: err}
	}
	return tripsPath, stopTimesPath, nil
}

func (s *ArchiveRealtimeSource) fetch(scratchDir string, day string) (string, string, error) {
	archiveName := fmt.Sprintf("subwaydatanyc_%s_csv.tar.xz", day)
	archivePath := filepath.Join(scratchDir, archiveName)
	downloaded, err := httpclient.DownloadRemoteFile(archivePath, s.BaseURL+"/"+archiveName)
	if err != nil {
		return "", "", err
	}
	s.Log.Printf("downloaded %s (%d bytes)", archiveName, downloaded.Size)
	defer func() {
		_ = os.Remove(archivePath)
	}()

	tripsName := fmt.Sprintf("subwaydatanyc_%s_trips.csv", day)
	stopTimesName := fmt.Sprintf("subwaydatanyc_%s_stop_times.csv", day)
	tripsPath := filepath.Join(scratchDir, tripsName)
	stopTimesPath := filepath.Join(scratchDir, stopTimesName)
	err = extractTarXzFiles(archivePath, map[string]string{
		tripsName:     tripsPath,
		stopTimesName: stopTimesPath,
	})
	if err != nil {
		return "", "", err
	}
	return tripsPath, stopTimesPath, nil
}

// extractTarXzFiles copies the named archive members to their destination
// paths, matching on base name so a leading folder in the archive is fine.
func extractTarXzFiles(archivePath string, wanted map[string]string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()
	xzReader, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("opening realtime archive: %w", err)
	}

	found := make(map[string]bool, len(wanted))
	tarReader := tar.NewReader(xzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading realtime archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.Base(header.Name)
		destination, isWanted := wanted[name]
		if !isWanted || found[name] {
			continue
		}
		if err = copyTarFile(tarReader, destination); err != nil {
			return err
		}
		found[name] = true
	}
	for name := range wanted {
		if !found[name] {
			return fmt.Errorf("realtime archive is missing %s", name)
		}
	}
	return nil
}

func copyTarFile(tarReader *tar.Reader, destination string) error {
	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()
	_, err = io.Copy(out, tarReader)
	return err
}
