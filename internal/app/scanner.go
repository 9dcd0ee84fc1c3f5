package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
	"github.com/rs/zerolog"
)

// FileScanner découvre les vidéos uploadables d'un dossier.
type FileScanner struct {
	logger zerolog.Logger
	exts   map[string]struct{}
}

func NewFileScanner(logger zerolog.Logger) *FileScanner {
	return &FileScanner{
		logger: logger,
		exts:   map[string]struct{}{".mp4": {}},
	}
}

// Scan parcourt récursivement dir et renvoie les vidéos non vides, triées
// par nom de fichier (insensible à la casse). La légende par défaut est le
// stem du fichier.
func (s *FileScanner) Scan(dir string) ([]domain.Video, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coded(CodeDirectoryNotFound, "directory not found: "+dir, err)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, coded(CodeDirectoryNotFound, "not a directory: "+dir, nil)
	}

	var videos []domain.Video
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := s.exts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		fi, err := d.Info()
		if err != nil || fi.Size() == 0 {
			return nil
		}
		base := filepath.Base(path)
		videos = append(videos, domain.Video{
			Path:      path,
			Caption:   strings.TrimSuffix(base, filepath.Ext(base)),
			SizeBytes: fi.Size(),
			Status:    domain.VideoDiscovered,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(videos, func(i, j int) bool {
		return strings.ToLower(filepath.Base(videos[i].Path)) < strings.ToLower(filepath.Base(videos[j].Path))
	})

	s.logger.Info().Str("dir", dir).Int("count", len(videos)).Msg("folder scanned")
	return videos, nil
}

// DuplicateGroups regroupe les fichiers partageant le même nom de base
// (doublons potentiels entre sous-dossiers).
func (s *FileScanner) DuplicateGroups(videos []domain.Video) [][]domain.Video {
	byName := make(map[string][]domain.Video)
	for _, v := range videos {
		key := strings.ToLower(filepath.Base(v.Path))
		byName[key] = append(byName[key], v)
	}

	var groups [][]domain.Video
	for _, g := range byName {
		if len(g) > 1 {
			groups = append(groups, g)
		}
	}
	if len(groups) > 0 {
		s.logger.Warn().Int("groups", len(groups)).Msg("duplicate basenames detected")
	}
	return groups
}
