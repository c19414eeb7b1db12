package persona

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/ToldYaOnce/kx-reply-pacer/internal/db"
)

// GormStore persists persona profiles in SQL. Ranges are flattened into
// columns; the pause policy is optional and signalled by pause_max > 0.
type GormStore struct {
	db *gorm.DB
}

type profileRow struct {
	Name          string  `gorm:"primaryKey;column:name"`
	ReadCPSMin    float64 `gorm:"column:read_cps_min"`
	ReadCPSMax    float64 `gorm:"column:read_cps_max"`
	TypeCPSMin    float64 `gorm:"column:type_cps_min"`
	TypeCPSMax    float64 `gorm:"column:type_cps_max"`
	CompBaseMin   float64 `gorm:"column:comp_base_ms_min"`
	CompBaseMax   float64 `gorm:"column:comp_base_ms_max"`
	CompPerTokMin float64 `gorm:"column:comp_per_token_ms_min"`
	CompPerTokMax float64 `gorm:"column:comp_per_token_ms_max"`
	WritePerChMin float64 `gorm:"column:write_per_char_ms_min"`
	WritePerChMax float64 `gorm:"column:write_per_char_ms_max"`
	JitterMin     float64 `gorm:"column:jitter_ms_min"`
	JitterMax     float64 `gorm:"column:jitter_ms_max"`
	PauseProb     float64 `gorm:"column:pause_probability"`
	PauseMin      float64 `gorm:"column:pause_ms_min"`
	PauseMax      float64 `gorm:"column:pause_ms_max"`
	PauseMaxCount int     `gorm:"column:pause_max_count"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (profileRow) TableName() string { return "persona_profiles" }

func NewGormStore(driver, dsn string) (*GormStore, error) {
	gormDB, err := dbpkg.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open persona store: %w", err)
	}
	store := &GormStore{db: gormDB}
	if err := gormDB.AutoMigrate(&profileRow{}); err != nil {
		return nil, fmt.Errorf("migrate persona store: %w", err)
	}
	return store, nil
}

func (s *GormStore) Get(ctx context.Context, name string) (Profile, error) {
	name = normalizeName(name)
	if name == "" {
		return Profile{}, ErrNotFound
	}

	var row profileRow
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("get persona: %w", err)
	}
	return row.toProfile(), nil
}

func (s *GormStore) Put(ctx context.Context, profile Profile) error {
	profile.Name = normalizeName(profile.Name)
	if err := profile.Validate(); err != nil {
		return err
	}

	row := rowFromProfile(profile)
	row.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return fmt.Errorf("save persona: %w", err)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context) ([]Profile, error) {
	var rows []profileRow
	err := s.db.WithContext(ctx).Order("name").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}

	out := make([]Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toProfile())
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func rowFromProfile(p Profile) profileRow {
	row := profileRow{
		Name:          p.Name,
		ReadCPSMin:    p.ReadCPS.Min,
		ReadCPSMax:    p.ReadCPS.Max,
		TypeCPSMin:    p.TypeCPS.Min,
		TypeCPSMax:    p.TypeCPS.Max,
		CompBaseMin:   p.CompBaseMS.Min,
		CompBaseMax:   p.CompBaseMS.Max,
		CompPerTokMin: p.CompPerTokenMS.Min,
		CompPerTokMax: p.CompPerTokenMS.Max,
		WritePerChMin: p.WritePerCharMS.Min,
		WritePerChMax: p.WritePerCharMS.Max,
		JitterMin:     p.JitterMS.Min,
		JitterMax:     p.JitterMS.Max,
	}
	if p.Pauses != nil {
		row.PauseProb = p.Pauses.Probability
		row.PauseMin = p.Pauses.PauseMS.Min
		row.PauseMax = p.Pauses.PauseMS.Max
		row.PauseMaxCount = p.Pauses.MaxPauses
	}
	return row
}

func (r profileRow) toProfile() Profile {
	p := Profile{
		Name:           r.Name,
		ReadCPS:        Range{Min: r.ReadCPSMin, Max: r.ReadCPSMax},
		TypeCPS:        Range{Min: r.TypeCPSMin, Max: r.TypeCPSMax},
		CompBaseMS:     Range{Min: r.CompBaseMin, Max: r.CompBaseMax},
		CompPerTokenMS: Range{Min: r.CompPerTokMin, Max: r.CompPerTokMax},
		WritePerCharMS: Range{Min: r.WritePerChMin, Max: r.WritePerChMax},
		JitterMS:       Range{Min: r.JitterMin, Max: r.JitterMax},
	}
	if r.PauseMaxCount > 0 {
		p.Pauses = &PausePolicy{
			Probability: r.PauseProb,
			PauseMS:     Range{Min: r.PauseMin, Max: r.PauseMax},
			MaxPauses:   r.PauseMaxCount,
		}
	}
	return p
}
