package delivery

import (
	"context"
	"fmt"
	"sync"
)

// MemoryDelivery collects sent files in memory. It backs local runs against
// no dropbox and the coordinator tests.
type MemoryDelivery struct {
	mu    sync.Mutex
	files map[string][]byte
	// FailOn makes Send fail for a specific file name
	FailOn map[string]error
}

// NewMemoryDelivery creates an empty in-memory delivery target
func NewMemoryDelivery() *MemoryDelivery {
	return &MemoryDelivery{
		files:  make(map[string][]byte),
		FailOn: make(map[string]error),
	}
}

// Send records the file content under its name
func (d *MemoryDelivery) Send(_ context.Context, fileName string, content []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.FailOn[fileName]; ok {
		return err
	}
	if _, exists := d.files[fileName]; exists {
		return fmt.Errorf("file %s was already sent", fileName)
	}
	stored := make([]byte, len(content))
	copy(stored, content)
	d.files[fileName] = stored
	return nil
}

// File returns the content sent under fileName
func (d *MemoryDelivery) File(fileName string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	content, ok := d.files[fileName]
	return content, ok
}

// FileNames returns the names of every sent file
func (d *MemoryDelivery) FileNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.files))
	for name := range d.files {
		names = append(names, name)
	}
	return names
}
