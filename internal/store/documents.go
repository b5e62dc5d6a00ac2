package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a course id does not exist.
var ErrNotFound = errors.New("not found")

// UnknownScenarioTitle is shown for scenarios that cannot be read.
const UnknownScenarioTitle = "Unknown Scenario"

// =============================================================================
// Settings
// =============================================================================

// Settings is the application settings document.
type Settings struct {
	AdminPassword string `json:"admin_password"`
	Language      string `json:"language"`
	Theme         string `json:"theme"`
}

// Settings returns the current settings. Fields absent from the document take
// their default values.
func (s *Store) Settings() (Settings, error) {
	def := DefaultSettings()
	out := Settings{
		AdminPassword: def["admin_password"].(string),
		Language:      def["language"].(string),
		Theme:         def["theme"].(string),
	}
	if err := s.Read(s.paths.Settings, CategorySettings, &out); err != nil {
		return Settings{}, err
	}
	return out, nil
}

// SetPassword changes the admin password.
func (s *Store) SetPassword(password string) error {
	if password == "" {
		return errors.New("password is empty")
	}
	return s.Update(s.paths.Settings, CategorySettings, map[string]any{"admin_password": password})
}

// CheckPassword reports whether password matches the admin password.
func (s *Store) CheckPassword(password string) (bool, error) {
	settings, err := s.Settings()
	if err != nil {
		return false, err
	}
	return settings.AdminPassword == password, nil
}

// SetLanguage changes the interface language.
func (s *Store) SetLanguage(lang string) error {
	return s.Update(s.paths.Settings, CategorySettings, map[string]any{"language": lang})
}

// SetTheme changes the interface theme.
func (s *Store) SetTheme(theme string) error {
	return s.Update(s.paths.Settings, CategorySettings, map[string]any{"theme": theme})
}

// =============================================================================
// Courses
// =============================================================================

// Course is one entry of the courses document.
type Course struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	FilePath  string `json:"file_path"`
	AddedDate string `json:"added_date"`
}

// Courses returns every course in document order.
func (s *Store) Courses() ([]Course, error) {
	var courses []Course
	if err := s.Read(s.paths.Courses, CategoryCourses, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// AddCourse appends a course and returns it.
func (s *Store) AddCourse(title, file string) (Course, error) {
	if strings.TrimSpace(title) == "" {
		return Course{}, errors.New("course title is empty")
	}
	course := Course{
		ID:        "course_" + uuid.NewString()[:8],
		Title:     title,
		FilePath:  file,
		AddedDate: s.today(),
	}
	err := s.modifyCourses(func(courses []Course) ([]Course, error) {
		return append(courses, course), nil
	})
	if err != nil {
		return Course{}, err
	}
	return course, nil
}

// RenameCourse changes the title of course id.
func (s *Store) RenameCourse(id, title string) error {
	return s.editCourse(id, func(c *Course) { c.Title = title })
}

// SetCourseFile changes the file of course id.
func (s *Store) SetCourseFile(id, file string) error {
	return s.editCourse(id, func(c *Course) { c.FilePath = file })
}

// DeleteCourse removes course id.
func (s *Store) DeleteCourse(id string) error {
	return s.modifyCourses(func(courses []Course) ([]Course, error) {
		for i := range courses {
			if courses[i].ID == id {
				return append(courses[:i], courses[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("course %s: %w", id, ErrNotFound)
	})
}

func (s *Store) editCourse(id string, edit func(*Course)) error {
	return s.modifyCourses(func(courses []Course) ([]Course, error) {
		for i := range courses {
			if courses[i].ID == id {
				edit(&courses[i])
				return courses, nil
			}
		}
		return nil, fmt.Errorf("course %s: %w", id, ErrNotFound)
	})
}

func (s *Store) modifyCourses(fn func([]Course) ([]Course, error)) error {
	return s.modify(s.paths.Courses, CategoryCourses, func(data []byte) (any, error) {
		var courses []Course
		if err := json.Unmarshal(data, &courses); err != nil {
			return nil, fmt.Errorf("decode courses: %w", err)
		}
		out, err := fn(courses)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = []Course{}
		}
		return out, nil
	})
}

// =============================================================================
// History
// =============================================================================

// HistoryRecord is one completed test.
type HistoryRecord struct {
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	Score           int    `json:"score"`
	Right           int    `json:"right"`
	Wrong           int    `json:"wrong"`
	Date            string `json:"date"`
	ScenariosPlayed int    `json:"scenarios_played"`
}

// History returns every record in the order they were appended.
func (s *Store) History() ([]HistoryRecord, error) {
	var records []HistoryRecord
	if err := s.Read(s.paths.History, CategoryHistory, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// AppendHistory adds rec to the end of the history.
func (s *Store) AppendHistory(rec HistoryRecord) error {
	return s.modify(s.paths.History, CategoryHistory, func(data []byte) (any, error) {
		var records []HistoryRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		return append(records, rec), nil
	})
}

// ClearHistory empties the history.
func (s *Store) ClearHistory() error {
	return s.Write(s.paths.History, []HistoryRecord{})
}

// =============================================================================
// Scenarios
// =============================================================================

// ScenarioInfo describes one scenario document on disk.
type ScenarioInfo struct {
	File  string // base name
	Path  string
	Title string
}

// ListScenarios returns the *.json documents in dir sorted by file name.
// A missing directory yields no scenarios. Untitled documents use their file
// name; unreadable ones are listed with UnknownScenarioTitle so they can still
// be deleted.
func (s *Store) ListScenarios(dir string) ([]ScenarioInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}

	var out []ScenarioInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		out = append(out, ScenarioInfo{
			File:  e.Name(),
			Path:  path,
			Title: s.scenarioTitle(path),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out, nil
}

func (s *Store) scenarioTitle(path string) string {
	var doc struct {
		Title string `json:"title"`
	}
	if err := s.Read(path, CategoryScenario, &doc); err != nil {
		s.logger.Warn("scenario_unreadable", "path", path, "error", err)
		return UnknownScenarioTitle
	}
	if doc.Title == "" {
		base := filepath.Base(path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return doc.Title
}

// DeleteScenario removes file from dir. file must be a plain file name.
func (s *Store) DeleteScenario(dir, file string) error {
	if file == "" || filepath.Base(file) != file {
		return fmt.Errorf("invalid scenario file name %q", file)
	}
	path := filepath.Join(dir, file)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}
	os.Remove(path + ".lock")
	s.logger.Info("scenario_deleted", "path", path)
	return nil
}
