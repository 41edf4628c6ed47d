// Package imagedb stores a position's image stack as a layered, frame-indexed
// sqlite database, together with the markers and tracks placed on its frames.
package imagedb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// ErrDuplicateImage is returned when an image is registered twice
	ErrDuplicateImage = errors.New("image already registered")

	// ErrUnknownLayer is returned for a layer name the database does not hold
	ErrUnknownLayer = errors.New("unknown layer")

	// ErrUnknownMarkerType is returned for a marker type the database does not hold
	ErrUnknownMarkerType = errors.New("unknown marker type")

	// ErrFrameNotFound is returned when a layer has no image at the requested frame
	ErrFrameNotFound = errors.New("frame not found")
)

// MarkerMode selects how a viewer draws markers of a type
type MarkerMode int

const (
	ModeMarker MarkerMode = 0
	ModeRect   MarkerMode = 1
	ModeLine   MarkerMode = 2
	ModeTrack  MarkerMode = 4
)

// Layer is one imaging channel
type Layer struct {
	ID   int64
	Name string
}

// Image is one registered file
type Image struct {
	ID        int64
	Filename  string
	Path      string
	Layer     string
	SortIndex int
}

// MarkerType groups markers for display
type MarkerType struct {
	ID    int64
	Name  string
	Color string
	Mode  MarkerMode
}

// Track links markers of one object across frames
type Track struct {
	ID  int64
	UID string
}

// Marker is a point annotation on one frame of a layer
type Marker struct {
	Frame   int
	Layer   string
	X, Y    float64
	Type    string
	TrackID int64
	Text    string
}

// DB is an open image database
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates the database file at path and migrates it to the
// current schema
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open image database %s: %w", path, err)
	}
	// one connection keeps pragmas and writes on a single sqlite handle
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// Path returns the file the database was opened from
func (db *DB) Path() string {
	return db.path
}

// SetLayer returns the layer with the given name, creating it if needed
func (db *DB) SetLayer(name string) (Layer, error) {
	if _, err := db.Exec(`INSERT OR IGNORE INTO layer (name) VALUES (?)`, name); err != nil {
		return Layer{}, fmt.Errorf("failed to create layer %s: %w", name, err)
	}
	return db.GetLayer(name)
}

// GetLayer looks up a layer by name
func (db *DB) GetLayer(name string) (Layer, error) {
	l := Layer{Name: name}
	err := db.QueryRow(`SELECT id FROM layer WHERE name = ?`, name).Scan(&l.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return Layer{}, fmt.Errorf("%w: %s", ErrUnknownLayer, name)
	}
	if err != nil {
		return Layer{}, fmt.Errorf("failed to look up layer %s: %w", name, err)
	}
	return l, nil
}

// SetPath returns the id of the path entry, creating it if needed
func (db *DB) SetPath(path string) (int64, error) {
	if _, err := db.Exec(`INSERT OR IGNORE INTO path (path) VALUES (?)`, path); err != nil {
		return 0, fmt.Errorf("failed to create path %s: %w", path, err)
	}
	var id int64
	if err := db.QueryRow(`SELECT id FROM path WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to look up path %s: %w", path, err)
	}
	return id, nil
}

// AddImage registers a file on a layer at the given sort index.
// Registering the same file twice, or two files at the same index of a layer,
// returns ErrDuplicateImage and leaves the database unchanged.
func (db *DB) AddImage(filename string, pathID int64, layer Layer, sortIndex int) (int64, error) {
	res, err := db.Exec(
		`INSERT OR IGNORE INTO image (filename, path_id, layer_id, sort_index) VALUES (?, ?, ?, ?)`,
		filename, pathID, layer.ID, sortIndex,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add image %s: %w", filename, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateImage, filename)
	}

	return res.LastInsertId()
}

// ImageCount returns the number of frames on a layer
func (db *DB) ImageCount(layer string) (int, error) {
	l, err := db.GetLayer(layer)
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM image WHERE layer_id = ?`, l.ID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count images of layer %s: %w", layer, err)
	}
	return n, nil
}

// Image returns the image shown at a frame of a layer. Frames number the
// layer's images in sort index order starting at zero.
func (db *DB) Image(layer string, frame int) (Image, error) {
	l, err := db.GetLayer(layer)
	if err != nil {
		return Image{}, err
	}
	if frame < 0 {
		return Image{}, fmt.Errorf("%w: %s frame %d", ErrFrameNotFound, layer, frame)
	}

	img := Image{Layer: layer}
	err = db.QueryRow(`
		SELECT i.id, i.filename, p.path, i.sort_index
		FROM image i JOIN path p ON p.id = i.path_id
		WHERE i.layer_id = ?
		ORDER BY i.sort_index
		LIMIT 1 OFFSET ?`, l.ID, frame,
	).Scan(&img.ID, &img.Filename, &img.Path, &img.SortIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return Image{}, fmt.Errorf("%w: %s frame %d", ErrFrameNotFound, layer, frame)
	}
	if err != nil {
		return Image{}, fmt.Errorf("failed to look up %s frame %d: %w", layer, frame, err)
	}
	return img, nil
}

// Images returns all images of a layer in frame order
func (db *DB) Images(layer string) ([]Image, error) {
	l, err := db.GetLayer(layer)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT i.id, i.filename, p.path, i.sort_index
		FROM image i JOIN path p ON p.id = i.path_id
		WHERE i.layer_id = ?
		ORDER BY i.sort_index`, l.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images of layer %s: %w", layer, err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		img := Image{Layer: layer}
		if err := rows.Scan(&img.ID, &img.Filename, &img.Path, &img.SortIndex); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// SetMarkerType creates a marker type or updates its color and mode
func (db *DB) SetMarkerType(name, color string, mode MarkerMode) (MarkerType, error) {
	_, err := db.Exec(`
		INSERT INTO marker_type (name, color, mode) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET color = excluded.color, mode = excluded.mode`,
		name, color, int(mode))
	if err != nil {
		return MarkerType{}, fmt.Errorf("failed to set marker type %s: %w", name, err)
	}
	return db.GetMarkerType(name)
}

// GetMarkerType looks up a marker type by name
func (db *DB) GetMarkerType(name string) (MarkerType, error) {
	mt := MarkerType{Name: name}
	var mode int
	err := db.QueryRow(`SELECT id, color, mode FROM marker_type WHERE name = ?`, name).Scan(&mt.ID, &mt.Color, &mode)
	if errors.Is(err, sql.ErrNoRows) {
		return MarkerType{}, fmt.Errorf("%w: %s", ErrUnknownMarkerType, name)
	}
	if err != nil {
		return MarkerType{}, fmt.Errorf("failed to look up marker type %s: %w", name, err)
	}
	mt.Mode = MarkerMode(mode)
	return mt, nil
}

// NewTrack creates an empty track of the given marker type
func (db *DB) NewTrack(mt MarkerType) (Track, error) {
	t := Track{UID: uuid.NewString()}
	res, err := db.Exec(`INSERT INTO track (uid, type_id) VALUES (?, ?)`, t.UID, mt.ID)
	if err != nil {
		return Track{}, fmt.Errorf("failed to create track: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return Track{}, err
	}
	return t, nil
}

// SetMarker places a marker on a frame of a layer
func (db *DB) SetMarker(m Marker) error {
	img, err := db.Image(m.Layer, m.Frame)
	if err != nil {
		return err
	}
	mt, err := db.GetMarkerType(m.Type)
	if err != nil {
		return err
	}

	var track any
	if m.TrackID != 0 {
		track = m.TrackID
	}

	_, err = db.Exec(
		`INSERT INTO marker (image_id, x, y, type_id, track_id, text) VALUES (?, ?, ?, ?, ?, ?)`,
		img.ID, m.X, m.Y, mt.ID, track, m.Text,
	)
	if err != nil {
		return fmt.Errorf("failed to set marker on %s frame %d: %w", m.Layer, m.Frame, err)
	}
	return nil
}

// Markers returns every marker of a type ordered by insertion
func (db *DB) Markers(typeName string) ([]Marker, error) {
	mt, err := db.GetMarkerType(typeName)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT
			(SELECT COUNT(*) FROM image i2 WHERE i2.layer_id = i.layer_id AND i2.sort_index < i.sort_index),
			l.name, m.x, m.y, COALESCE(m.track_id, 0), m.text
		FROM marker m
		JOIN image i ON i.id = m.image_id
		JOIN layer l ON l.id = i.layer_id
		WHERE m.type_id = ?
		ORDER BY m.id`, mt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers of type %s: %w", typeName, err)
	}
	defer rows.Close()

	var markers []Marker
	for rows.Next() {
		m := Marker{Type: typeName}
		if err := rows.Scan(&m.Frame, &m.Layer, &m.X, &m.Y, &m.TrackID, &m.Text); err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

// DeleteMarkersOfType removes all markers and tracks of a type
func (db *DB) DeleteMarkersOfType(mt MarkerType) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM marker WHERE type_id = ?`, mt.ID); err != nil {
		return fmt.Errorf("failed to delete markers of type %s: %w", mt.Name, err)
	}
	if _, err := tx.Exec(`DELETE FROM track WHERE type_id = ?`, mt.ID); err != nil {
		return fmt.Errorf("failed to delete tracks of type %s: %w", mt.Name, err)
	}
	return tx.Commit()
}

// SetOption stores a display option
func (db *DB) SetOption(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO options (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set option %s: %w", key, err)
	}
	return nil
}

// Option returns a display option and whether it is set
func (db *DB) Option(key string) (string, bool, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM options WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read option %s: %w", key, err)
	}
	return value, true, nil
}
