package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
)

var magicBytes = []byte("DLAYSNAP")

const (
	filePrefix    = "snapshot-"
	fileExtension = ".snap"
	checksumSize  = sha256.Size
	headerVersion = 1

	DefaultRetentionCount = 5
	DefaultRetentionDays  = 7
)

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrNotFound         = errors.New("snapshot: not found")
	ErrNoSnapshots      = errors.New("snapshot: no snapshots available")
)

type header struct {
	Version     int    `json:"version"`
	CreatedAt   int64  `json:"created_at"`
	Table       string `json:"table"`
	RecordCount int    `json:"record_count"`
	Encrypted   bool   `json:"encrypted"`
	Algorithm   string `json:"algorithm,omitempty"`
	Salt        string `json:"salt,omitempty"`
}

// Config configures the snapshot manager.
type Config struct {
	Dir string

	// RetentionCount snapshots are kept per table, plus any younger
	// than RetentionDays. The newest snapshot of a table is never pruned.
	RetentionCount int
	RetentionDays  int

	Encryption EncryptionConfig
}

// DefaultConfig returns the default retention for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
		RetentionDays:  DefaultRetentionDays,
	}
}

// Info contains metadata about a snapshot.
type Info struct {
	ID          string `json:"id" yaml:"id"`
	Table       string `json:"table" yaml:"table"`
	RecordCount int    `json:"record_count" yaml:"record_count"`
	CreatedAt   int64  `json:"created_at" yaml:"created_at"`
	Encrypted   bool   `json:"encrypted" yaml:"encrypted"`
	Size        int64  `json:"size" yaml:"size"`
	Path        string `json:"path" yaml:"path"`
	Checksum    string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// Snapshot is a loaded snapshot.
type Snapshot struct {
	Info    *Info
	Records []domain.Record
}

// Manager creates, lists, loads and prunes snapshot files in one
// directory.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates the directory if needed.
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if err := cfg.Encryption.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	if cfg.RetentionCount <= 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	if cfg.RetentionDays < 0 {
		cfg.RetentionDays = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger.With("component", "snapshot"), now: time.Now}, nil
}

// Create writes records of table to a new snapshot file. The file is
// written to a temporary name and renamed once synced.
func (m *Manager) Create(table string, records []domain.Record) (*Info, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return nil, err
	}
	now := m.now()
	id := m.generateID(table, now)

	rows := make([]medium.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, medium.FromRecord(rec))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal records: %w", err)
	}

	hdr := header{
		Version:     headerVersion,
		CreatedAt:   now.UnixMilli(),
		Table:       table,
		RecordCount: len(rows),
	}
	var seal func(hdrJSON []byte) ([]byte, error)
	if enc := m.cfg.Encryption; enc.Enabled() {
		ci, salt, err := enc.cipher(enc.Algorithm, nil)
		if err != nil {
			return nil, err
		}
		hdr.Encrypted = true
		hdr.Algorithm = string(ci.Type())
		if salt != nil {
			hdr.Salt = hex.EncodeToString(salt)
		}
		seal = func(hdrJSON []byte) ([]byte, error) { return ci.Encrypt(payload, hdrJSON) }
	}

	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal header: %w", err)
	}
	if seal != nil {
		if payload, err = seal(hdrJSON); err != nil {
			return nil, fmt.Errorf("snapshot: encrypt: %w", err)
		}
	}

	finalPath := filepath.Join(m.cfg.Dir, id+fileExtension)
	sum, size, err := writeFile(finalPath, hdrJSON, payload)
	if err != nil {
		return nil, err
	}

	info := &Info{
		ID:          id,
		Table:       table,
		RecordCount: len(rows),
		CreatedAt:   hdr.CreatedAt,
		Encrypted:   hdr.Encrypted,
		Size:        size,
		Path:        finalPath,
		Checksum:    hex.EncodeToString(sum),
	}
	m.logger.Info("snapshot created", "id", id, "table", table, "records", len(rows), "encrypted", hdr.Encrypted)
	return info, nil
}

func writeFile(finalPath string, hdrJSON, payload []byte) (sum []byte, size int64, err error) {
	tempPath := finalPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, 0, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	w := io.MultiWriter(file, hash)
	var hdrLen, payloadLen [4]byte
	binary.BigEndian.PutUint32(hdrLen[:], uint32(len(hdrJSON)))
	binary.BigEndian.PutUint32(payloadLen[:], uint32(len(payload)))
	for _, part := range [][]byte{magicBytes, hdrLen[:], hdrJSON, payloadLen[:], payload} {
		n, werr := w.Write(part)
		size += int64(n)
		if werr != nil {
			file.Close()
			return nil, 0, fmt.Errorf("snapshot: write: %w", werr)
		}
	}

	sum = hash.Sum(nil)
	if _, err := file.Write(sum); err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("snapshot: write checksum: %w", err)
	}
	size += checksumSize
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, 0, fmt.Errorf("snapshot: close: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, 0, fmt.Errorf("snapshot: rename: %w", err)
	}
	return sum, size, nil
}

// Load reads the snapshot with the given id.
func (m *Manager) Load(id string) (*Snapshot, error) {
	path := filepath.Join(m.cfg.Dir, id+fileExtension)
	if filepath.Base(path) != id+fileExtension {
		return nil, ErrNotFound
	}
	snap, err := m.loadFile(path, true)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return snap, err
}

// Latest loads the newest readable snapshot of table. Corrupt files are
// skipped with a warning.
func (m *Manager) Latest(table string) (*Snapshot, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}
	for i := len(infos) - 1; i >= 0; i-- {
		if infos[i].Table != table {
			continue
		}
		snap, err := m.loadFile(infos[i].Path, true)
		if err == nil {
			return snap, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidMagic) {
			m.logger.Warn("skipping corrupt snapshot", "id", infos[i].ID, "error", err)
			continue
		}
		return nil, err
	}
	return nil, ErrNoSnapshots
}

func (m *Manager) loadFile(path string, withRecords bool) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() < int64(len(magicBytes))+8+checksumSize {
		return nil, ErrChecksumMismatch
	}

	bodyLen := stat.Size() - checksumSize
	expected := make([]byte, checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, bodyLen, checksumSize), expected); err != nil {
		return nil, err
	}
	if withRecords {
		h := sha256.New()
		if _, err := io.Copy(h, io.NewSectionReader(f, 0, bodyLen)); err != nil {
			return nil, err
		}
		if !bytes.Equal(h.Sum(nil), expected) {
			return nil, ErrChecksumMismatch
		}
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, bodyLen))
	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, ErrInvalidMagic
	}

	hdrJSON, err := readBlock(br, bodyLen)
	if err != nil {
		return nil, fmt.Errorf("snapshot: header: %w", err)
	}
	var hdr header
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal header: %w", err)
	}

	snap := &Snapshot{Info: &Info{
		ID:          strings.TrimSuffix(filepath.Base(path), fileExtension),
		Table:       hdr.Table,
		RecordCount: hdr.RecordCount,
		CreatedAt:   hdr.CreatedAt,
		Encrypted:   hdr.Encrypted,
		Size:        stat.Size(),
		Path:        path,
		Checksum:    hex.EncodeToString(expected),
	}}
	if !withRecords {
		return snap, nil
	}

	payload, err := readBlock(br, bodyLen)
	if err != nil {
		return nil, fmt.Errorf("snapshot: payload: %w", err)
	}
	if hdr.Encrypted {
		if payload, err = m.open(hdr, hdrJSON, payload); err != nil {
			return nil, err
		}
	}

	var rows []medium.Row
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal records: %w", err)
	}
	snap.Records = make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.Record()
		if err != nil {
			m.logger.Warn("malformed snapshot row, decoded with defaults", "id", snap.Info.ID, "key", row.Key, "error", err)
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

func (m *Manager) open(hdr header, hdrJSON, payload []byte) ([]byte, error) {
	if !m.cfg.Encryption.Enabled() {
		return nil, ErrEncrypted
	}
	var salt []byte
	if hdr.Salt != "" {
		var err error
		if salt, err = hex.DecodeString(hdr.Salt); err != nil {
			return nil, fmt.Errorf("snapshot: salt: %w", err)
		}
	} else if len(m.cfg.Encryption.Passphrase) > 0 {
		return nil, ErrDecryptionFailed
	}
	ci, _, err := m.cfg.Encryption.cipher(hdr.Algorithm, salt)
	if err != nil {
		return nil, err
	}
	plain, err := ci.Decrypt(payload, hdrJSON)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}

func readBlock(r io.Reader, limit int64) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := int64(binary.BigEndian.Uint32(lenBuf[:]))
	if n == 0 || n > limit {
		return nil, fmt.Errorf("invalid block length %d", n)
	}
	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	return buf, err
}

// List returns the snapshots in the directory, oldest first. Files whose
// header cannot be read are skipped.
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []*Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		snap, err := m.loadFile(filepath.Join(m.cfg.Dir, name), false)
		if err != nil {
			m.logger.Debug("unreadable snapshot header", "file", name, "error", err)
			continue
		}
		infos = append(infos, snap.Info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt != infos[j].CreatedAt {
			return infos[i].CreatedAt < infos[j].CreatedAt
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// Prune applies the retention policy per table and returns the number
// of files removed.
func (m *Manager) Prune() (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}

	byTable := make(map[string][]*Info)
	for _, info := range infos {
		byTable[info.Table] = append(byTable[info.Table], info)
	}

	cutoff := m.now().Add(-time.Duration(m.cfg.RetentionDays) * 24 * time.Hour).UnixMilli()
	var (
		removed int
		errs    []error
	)
	for _, list := range byTable {
		keepFrom := len(list) - m.cfg.RetentionCount
		for i, info := range list {
			if i >= keepFrom || (m.cfg.RetentionDays > 0 && info.CreatedAt > cutoff) {
				continue
			}
			if err := os.Remove(info.Path); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("snapshots pruned", "removed", removed)
	}
	return removed, errors.Join(errs...)
}

func (m *Manager) generateID(table string, t time.Time) string {
	prefix := fmt.Sprintf("%s%s-%s-", filePrefix, table, t.UTC().Format("20060102150405"))
	seq := 1
	entries, _ := os.ReadDir(m.cfg.Dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), fileExtension) {
			seq++
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq)
}
