package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore redis 不可用时的本地 JSON 回退。
// 写入走临时文件 + rename，保证读到的文件总是完整的。
type FileStore struct {
	dir string
}

// NewFileStore 创建目录（如不存在）并返回文件存储。
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) candidatesPath() string {
	return filepath.Join(s.dir, "premarket_candidates.json")
}

// SaveCandidates 原子写入候选名单。
func (s *FileStore) SaveCandidates(candidates []Candidate) error {
	raw, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "candidates-*.tmp")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write candidates: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.candidatesPath()); err != nil {
		return fmt.Errorf("rename candidates: %w", err)
	}
	return nil
}

// LoadCandidates 读取候选名单。
func (s *FileStore) LoadCandidates() ([]Candidate, error) {
	raw, err := os.ReadFile(s.candidatesPath())
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	var out []Candidate
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return out, nil
}
