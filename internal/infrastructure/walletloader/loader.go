package walletloader

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"balance_engine/internal/domain/entity"
)

type accountsFile struct {
	Accounts []entity.Account `yaml:"accounts"`
}

// AccountDirectory implements port.AccountDirectory from a YAML file.
type AccountDirectory struct {
	mu       sync.RWMutex
	filePath string
	byID     map[entity.AccountID]entity.Account
}

// NewAccountDirectory creates an empty directory backed by filePath.
func NewAccountDirectory(filePath string) *AccountDirectory {
	return &AccountDirectory{filePath: filePath, byID: make(map[entity.AccountID]entity.Account)}
}

// Load (re)reads the file. Entries without an id are skipped; a missing network means mainnet.
func (d *AccountDirectory) Load(loggerInfo func(msg string, args ...any)) error {
	data, err := os.ReadFile(d.filePath)
	if err != nil {
		return fmt.Errorf("failed to open account file %s: %w", d.filePath, err)
	}
	var file accountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse account file %s: %w", d.filePath, err)
	}

	byID := make(map[entity.AccountID]entity.Account, len(file.Accounts))
	for i, a := range file.Accounts {
		if a.ID == "" {
			if loggerInfo != nil {
				loggerInfo("Skipping account without id", "file", d.filePath, "index", i)
			}
			continue
		}
		if a.Network == "" {
			a.Network = entity.NetworkMainnet
		}
		byID[a.ID] = a
	}

	d.mu.Lock()
	d.byID = byID
	d.mu.Unlock()

	if loggerInfo != nil {
		loggerInfo("Accounts loaded successfully from file", "count", len(byID), "path", d.filePath)
	}
	return nil
}

// Account implements port.AccountDirectory.
func (d *AccountDirectory) Account(id entity.AccountID) (entity.Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byID[id]
	return a, ok
}

// Accounts implements port.AccountDirectory. The result is ordered by id.
func (d *AccountDirectory) Accounts() []entity.Account {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]entity.Account, 0, len(d.byID))
	for _, a := range d.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every account id, ordered.
func (d *AccountDirectory) IDs() []entity.AccountID {
	accounts := d.Accounts()
	ids := make([]entity.AccountID, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids
}

// Put adds or replaces an account.
func (d *AccountDirectory) Put(a entity.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[a.ID] = a
}

// Remove forgets an account.
func (d *AccountDirectory) Remove(id entity.AccountID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byID, id)
}
