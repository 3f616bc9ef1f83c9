package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
)

// Memory is an in-process store used when ENABLE_DB=false and in tests.
type Memory struct {
	mu   sync.RWMutex
	data records.Dataset
	regs []registry.Region
	err  error
}

func NewMemory(regions []registry.Region, data records.Dataset) *Memory {
	return &Memory{regs: append([]registry.Region(nil), regions...), data: data}
}

// LoadDataset decodes a dataset in the layout written by the export
// command.
func LoadDataset(r io.Reader) (records.Dataset, error) {
	var data records.Dataset
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return records.Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return data, nil
}

// NewMemoryFromFile seeds a Memory store from an exported dataset file.
func NewMemoryFromFile(path string, regions []registry.Region) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	data, err := LoadDataset(f)
	if err != nil {
		return nil, err
	}
	return NewMemory(regions, data), nil
}

// WriteDataset encodes data in the layout LoadDataset reads.
func WriteDataset(w io.Writer, data records.Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return nil
}

// SaveFile writes the current rows to path, replacing it atomically.
func (m *Memory) SaveFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.json")
	if err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := WriteDataset(tmp, m.Dataset()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Dataset returns a copy of every row held.
func (m *Memory) Dataset() records.Dataset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return records.Dataset{
		Malaria:      append([]records.IndicatorRecord(nil), m.data.Malaria...),
		Tuberculosis: append([]records.IndicatorRecord(nil), m.data.Tuberculosis...),
		FvrHumain:    append([]records.FvrHumainRecord(nil), m.data.FvrHumain...),
		FvrAnimal:    append([]records.FvrAnimalRecord(nil), m.data.FvrAnimal...),
		AvianFlu:     append([]records.AvianFluRecord(nil), m.data.AvianFlu...),
		Pollution:    append([]records.PollutionRecord(nil), m.data.Pollution...),
	}
}

// Fail makes every subsequent call return err wrapped as ErrUnavailable.
// Passing nil restores normal behaviour.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) check(op string) error {
	if m.err != nil {
		return unavailable(op, m.err)
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check("ping")
}

func (m *Memory) Regions(ctx context.Context) ([]registry.Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("regions"); err != nil {
		return nil, err
	}
	return append([]registry.Region(nil), m.regs...), nil
}

func (m *Memory) Indicators(ctx context.Context, domain records.Domain, years records.YearRange) ([]records.IndicatorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(string(domain)); err != nil {
		return nil, err
	}
	var src []records.IndicatorRecord
	switch domain {
	case records.Malaria:
		src = m.data.Malaria
	case records.Tuberculosis:
		src = m.data.Tuberculosis
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	out := make([]records.IndicatorRecord, 0, len(src))
	for _, r := range src {
		if years.Contains(r.Year) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (m *Memory) Pollution(ctx context.Context, years records.YearRange) ([]records.PollutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("pollution"); err != nil {
		return nil, err
	}
	var out []records.PollutionRecord
	for _, r := range m.data.Pollution {
		if years.Contains(r.Year) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (m *Memory) FvrHumain(ctx context.Context, years records.YearRange) ([]records.FvrHumainRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("fvr_humain"); err != nil {
		return nil, err
	}
	var out []records.FvrHumainRecord
	for _, r := range m.data.FvrHumain {
		if years.Contains(r.ReportDate.Year()) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReportDate.After(out[j].ReportDate) })
	return out, nil
}

func (m *Memory) FvrAnimal(ctx context.Context, years records.YearRange) ([]records.FvrAnimalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("fvr_animal"); err != nil {
		return nil, err
	}
	var out []records.FvrAnimalRecord
	for _, r := range m.data.FvrAnimal {
		if years.Contains(r.Year) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (m *Memory) AvianFlu(ctx context.Context, years records.YearRange) ([]records.AvianFluRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("grippe_aviaire"); err != nil {
		return nil, err
	}
	var out []records.AvianFluRecord
	for _, r := range m.data.AvianFlu {
		if years.Contains(r.ReportDate.Year()) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReportDate.After(out[j].ReportDate) })
	return out, nil
}

func fvrKey(r records.FvrHumainRecord) string {
	return r.ReportDate.Format("2006-01-02") + "|" + r.Region + "|" + r.District
}

func (m *Memory) InsertFvrHumain(ctx context.Context, rows []records.FvrHumainRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("insert fvr_humain"); err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(m.data.FvrHumain))
	for _, r := range m.data.FvrHumain {
		seen[fvrKey(r)] = true
	}
	inserted := 0
	for _, r := range rows {
		k := fvrKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		r.ID = int64(len(m.data.FvrHumain) + 1)
		m.data.FvrHumain = append(m.data.FvrHumain, r)
		inserted++
	}
	return inserted, nil
}

func indicatorKey(r records.IndicatorRecord) string {
	return fmt.Sprintf("%s|%d|%s", r.IndicatorCode, r.Year, r.Region)
}

func (m *Memory) InsertIndicators(ctx context.Context, domain records.Domain, rows []records.IndicatorRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("insert " + string(domain)); err != nil {
		return 0, err
	}
	var target *[]records.IndicatorRecord
	switch domain {
	case records.Malaria:
		target = &m.data.Malaria
	case records.Tuberculosis:
		target = &m.data.Tuberculosis
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	seen := make(map[string]bool, len(*target))
	for _, r := range *target {
		seen[indicatorKey(r)] = true
	}
	inserted := 0
	for _, r := range rows {
		k := indicatorKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		r.ID = int64(len(*target) + 1)
		*target = append(*target, r)
		inserted++
	}
	return inserted, nil
}
