package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileDump — формат файла FileStore.
//
// Файл содержит объект вида:
//
//	{ "collections": { "Workspace": [ ... ], "Folder": [ ... ] } }
//
// Документы внутри коллекции лежат в порядке вставки.
type FileDump struct {
	Collections map[string][]Document `json:"collections"`
}

// FileStore — MemoryStore, который после каждой успешной мутации
// сохраняет всё содержимое в JSON-файл.
//
// Запись атомарная: данные пишутся во временный файл рядом с целевым,
// затем выполняется rename. Оборванная запись не портит предыдущий файл.
type FileStore struct {
	mem  *MemoryStore
	path string

	flushMu sync.Mutex
}

// OpenFileStore загружает файл path (если он есть) и возвращает хранилище.
//
// Поведение:
//   - если файл не существует — хранилище пустое (первый запуск);
//   - если JSON некорректный — возвращается ошибка.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{mem: NewMemoryStore(), path: path}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var dump FileDump
	if err := json.Unmarshal(b, &dump); err != nil {
		return nil, fmt.Errorf("parse store file %s: %w", path, err)
	}
	if err := fs.mem.replaceAll(dump.Collections); err != nil {
		return nil, err
	}
	return fs, nil
}

// Collection реализует Store.
func (s *FileStore) Collection(name string) Collection {
	return &fileHandle{inner: s.mem.Collection(name), store: s}
}

// Close сбрасывает текущее состояние на диск.
func (s *FileStore) Close() error {
	return s.flush()
}

// flush сериализует снимок и атомарно заменяет файл.
func (s *FileStore) flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	snap, err := s.mem.snapshot()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(FileDump{Collections: snap}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	return atomicWriteFile(s.path, b, 0o600)
}

// atomicWriteFile пишет во временный файл в том же каталоге и переименовывает его.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // после успешного rename файла уже нет

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

type fileHandle struct {
	inner Collection
	store *FileStore
}

func (h *fileHandle) Insert(ctx context.Context, doc Document) (Document, error) {
	out, err := h.inner.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := h.store.flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *fileHandle) Update(ctx context.Context, q Query, set Document, opts UpdateOptions) (int, error) {
	n, err := h.inner.Update(ctx, q, set, opts)
	if err != nil || n == 0 {
		return n, err
	}
	return n, h.store.flush()
}

func (h *fileHandle) Remove(ctx context.Context, q Query, opts RemoveOptions) (int, error) {
	n, err := h.inner.Remove(ctx, q, opts)
	if err != nil || n == 0 {
		return n, err
	}
	return n, h.store.flush()
}

func (h *fileHandle) Find(ctx context.Context, q Query, opts FindOptions) ([]Document, error) {
	return h.inner.Find(ctx, q, opts)
}

func (h *fileHandle) FindOne(ctx context.Context, q Query) (Document, error) {
	return h.inner.FindOne(ctx, q)
}
