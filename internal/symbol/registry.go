package symbol

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mahekanna/gann-algomojo/internal/logger"
	"github.com/mahekanna/gann-algomojo/internal/types"
)

// Instrument is one watchlist entry. TVSymbol/AlgomojoSymbol, when set, take
// priority over the mapping rules for that symbol.
type Instrument struct {
	Symbol         string                `yaml:"symbol"`
	Class          types.InstrumentClass `yaml:"class"`
	Exchange       string                `yaml:"exchange"`
	Timeframe      string                `yaml:"timeframe"`
	TVSymbol       string                `yaml:"tv_symbol"`
	AlgomojoSymbol string                `yaml:"algomojo_symbol"`
	StrikeInterval float64               `yaml:"strike_interval"`
	LotSize        int                   `yaml:"lot_size"`
}

type registryFile struct {
	Watchlist []Instrument `yaml:"watchlist"`
	Rules     []Rule       `yaml:"rules"`
}

// Snapshot is the watchlist state at one load. Rules are not part of the
// snapshot: they are frozen at startup and edits take effect on restart only.
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	Watchlist []Instrument
}

// ChangeListener fires after a successful watchlist reload.
type ChangeListener func(Snapshot)

// Registry owns the symbol file: the traded watchlist (hot-reloaded on file
// change) and the mapping rules (loaded once).
type Registry struct {
	path   string
	v      *viper.Viper
	mapper *Mapper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("symbol registry requires path")
	}
	cfg, err := readRegistryFile(path)
	if err != nil {
		return nil, err
	}
	mapper, err := NewMapper(cfg.Rules)
	if err != nil {
		return nil, err
	}
	r := &Registry{path: path, mapper: mapper}
	r.apply(cfg.Watchlist)

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read symbol config failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("symbol registry reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	r.v = v
	return r, nil
}

// Mapper returns the rule mapper built at startup.
func (r *Registry) Mapper() *Mapper {
	return r.mapper
}

// Snapshot returns a copy of the current watchlist state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Instrument looks up a watchlist entry by its canonical (TradingView) name.
func (r *Registry) Instrument(symbol string) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ins := range r.snapshot.Watchlist {
		if ins.Symbol == symbol {
			return ins, true
		}
	}
	return Instrument{}, false
}

// OnChange registers a watchlist reload listener.
func (r *Registry) OnChange(fn ChangeListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Convert translates a symbol between schemes, preferring the instrument's
// explicit per-platform names over the rule set.
func (r *Registry) Convert(symbol string, from, to Scheme) (string, error) {
	ins, ok := r.Instrument(symbol)
	if ok {
		switch to {
		case SchemeAlgomojo:
			if ins.AlgomojoSymbol != "" {
				return ins.AlgomojoSymbol, nil
			}
		case SchemeTV:
			if ins.TVSymbol != "" {
				return ins.TVSymbol, nil
			}
		}
	}
	class := ins.Class
	if class == "" {
		class = types.ClassEquity
	}
	return r.mapper.Translate(symbol, class, from, to)
}

func (r *Registry) reload() error {
	cfg, err := readRegistryFile(r.path)
	if err != nil {
		return err
	}
	if len(cfg.Rules) != len(r.mapper.rules) {
		logger.Warnf("symbol mapping rules changed on disk; rules reload requires restart")
	}
	r.apply(cfg.Watchlist)
	logger.Infof("Symbol registry loaded %d instruments from %s",
		len(cfg.Watchlist), filepath.Base(r.path))
	return nil
}

func (r *Registry) apply(watchlist []Instrument) {
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:   r.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Watchlist: append([]Instrument(nil), watchlist...),
	}
	r.mu.Unlock()
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("symbol registry listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src Snapshot) Snapshot {
	return Snapshot{
		Version:   src.Version,
		LoadedAt:  src.LoadedAt,
		Watchlist: append([]Instrument(nil), src.Watchlist...),
	}
}

func readRegistryFile(path string) (*registryFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read symbol file failed: %w", err)
	}
	var cfg registryFile
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse symbol file failed: %w", err)
	}
	for i, ins := range cfg.Watchlist {
		if strings.TrimSpace(ins.Symbol) == "" {
			return nil, fmt.Errorf("symbol file: watchlist entry %d missing symbol", i)
		}
		if cfg.Watchlist[i].Class == "" {
			cfg.Watchlist[i].Class = types.ClassEquity
		}
	}
	return &cfg, nil
}
