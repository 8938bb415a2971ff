// Package config loads and validates the engine settings: database
// endpoints, schema and table names, pairing tunables, and the declarations
// API credentials. Settings come from a YAML file (JSON works too, being a
// YAML subset) decoded strictly, so unknown or duplicated keys fail instead
// of being silently dropped. Credentials may be left out of the file and
// supplied through environment variables instead.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/IGNF/ocsge-pv/pkg/constants"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
)

// Environment variables honored when the corresponding file entry is empty.
const (
	EnvMainPassword     = "OCSGE_PV_DB_PASSWORD"
	EnvCadastrePassword = "OCSGE_PV_CADASTRE_DB_PASSWORD"
	EnvAPIToken         = "OCSGE_PV_DS_TOKEN"
)

// Settings is the complete engine configuration.
type Settings struct {
	MainDatabase     MainDatabase       `yaml:"main_database"`
	CadastreDatabase CadastreDatabase   `yaml:"cadastre_database"`
	Pairing          PairingSettings    `yaml:"pairing"`
	Geometrize       GeometrizeSettings `yaml:"geometrize"`
	Import           ImportSettings     `yaml:"import"`
}

// Connection identifies one PostgreSQL endpoint.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ConnString renders the keyword/value connection string pgx accepts.
func (c *Connection) ConnString() string {
	parts := []string{
		"host=" + c.Host,
		"port=" + strconv.Itoa(c.Port),
		"dbname=" + c.Name,
		"user=" + c.User,
		"connect_timeout=" + strconv.Itoa(int(constants.DefaultConnectTimeout.Seconds())),
	}
	if c.Password != "" {
		parts = append(parts, "password="+c.Password)
	}
	return strings.Join(parts, " ")
}

// MainDatabase hosts the declaration, detection, and link tables. All three
// live in the same schema so link materialization can run in one
// transaction.
type MainDatabase struct {
	Connection `yaml:",inline"`
	Schema     string `yaml:"schema"`
	Tables     Tables `yaml:"tables"`
}

// Tables names the three matching tables inside the main schema.
type Tables struct {
	Declarations string `yaml:"declarations"`
	Detections   string `yaml:"detections"`
	Links        string `yaml:"links"`
}

// CadastreDatabase hosts the read-only parcel table. Leaving the connection
// fields empty points the engine at the main database instead.
type CadastreDatabase struct {
	Connection `yaml:",inline"`
	Schema     string `yaml:"schema"`
	Table      string `yaml:"table"`
}

// Separate reports whether a dedicated cadastre endpoint is configured.
func (c *CadastreDatabase) Separate() bool {
	return c.Host != ""
}

// PairingSettings tunes the matching run.
type PairingSettings struct {
	// Threshold is the minimum overlap score in [0,1]. 0 links every pair
	// with a positive intersection area.
	Threshold float64 `yaml:"threshold"`
	// Mode is the multiplicity policy, "many-to-many" or "best-match".
	Mode string `yaml:"mode"`
	// Workers caps the scoring goroutines. 0 sizes the pool from the CPU
	// count.
	Workers int `yaml:"workers"`
}

// GeometrizeSettings tunes the footprint derivation run.
type GeometrizeSettings struct {
	// BatchSize is the number of declarations fetched and written back per
	// round trip.
	BatchSize int `yaml:"batch_size"`
}

// ImportSettings configures the declarations API importer.
type ImportSettings struct {
	APIURL     string `yaml:"api_url"`
	DemarcheID int    `yaml:"demarche_id"`
	Token      string `yaml:"auth_token"`
}

// Default returns settings with every tunable at its documented default.
// Connection endpoints have no default and must come from the file.
func Default() *Settings {
	return &Settings{
		MainDatabase: MainDatabase{
			Connection: Connection{Port: 5432},
			Schema:     "public",
			Tables: Tables{
				Declarations: "declarations",
				Detections:   "detections",
				Links:        "liens",
			},
		},
		CadastreDatabase: CadastreDatabase{
			Connection: Connection{Port: 5432},
			Schema:     "public",
			Table:      "parcelles",
		},
		Pairing: PairingSettings{
			Mode: inventory.ModeManyToMany.String(),
		},
		Geometrize: GeometrizeSettings{
			BatchSize: constants.DefaultBatchSize,
		},
	}
}

// Load reads, decodes, and validates a settings file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.NewConfigError("settings", fmt.Sprintf("reading %s", path), err)
	}
	return parse(data, path)
}

// Parse decodes and validates settings from raw bytes.
func Parse(data []byte) (*Settings, error) {
	return parse(data, "settings")
}

func parse(data []byte, source string) (*Settings, error) {
	s := Default()
	if err := yaml.UnmarshalWithOptions(data, s,
		yaml.DisallowUnknownField(),
		yaml.DisallowDuplicateKey(),
	); err != nil {
		return nil, pkgerrors.WrapParse("yaml", source, err)
	}

	s.applyEnv()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// applyEnv fills credentials left empty in the file from the environment.
// A value present in the file wins over the environment.
func (s *Settings) applyEnv() {
	if s.MainDatabase.Password == "" {
		s.MainDatabase.Password = os.Getenv(EnvMainPassword)
	}
	if s.CadastreDatabase.Password == "" {
		s.CadastreDatabase.Password = os.Getenv(EnvCadastrePassword)
	}
	if s.Import.Token == "" {
		s.Import.Token = os.Getenv(EnvAPIToken)
	}
}

// identPattern matches the unquoted PostgreSQL identifiers accepted for
// schema and table names. Identifiers are sanitized again at query build
// time; validating here reports typos before any connection is opened.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks the settings for internal consistency. It runs before
// any connection is opened so a bad file can never touch the database.
func (s *Settings) Validate() error {
	if err := s.MainDatabase.validate(); err != nil {
		return err
	}
	if err := s.CadastreDatabase.validate(); err != nil {
		return err
	}
	if err := s.Pairing.validate(); err != nil {
		return err
	}
	if err := s.Geometrize.validate(); err != nil {
		return err
	}
	return s.Import.validate()
}

func (m *MainDatabase) validate() error {
	if err := m.Connection.validate("main_database"); err != nil {
		return err
	}
	if err := validIdent("main_database", "schema", m.Schema); err != nil {
		return err
	}

	tables := []struct {
		field string
		name  string
	}{
		{"tables.declarations", m.Tables.Declarations},
		{"tables.detections", m.Tables.Detections},
		{"tables.links", m.Tables.Links},
	}
	seen := make(map[string]string, len(tables))
	for _, tbl := range tables {
		if err := validIdent("main_database", tbl.field, tbl.name); err != nil {
			return err
		}
		if other, dup := seen[tbl.name]; dup {
			return pkgerrors.NewConfigError("main_database",
				fmt.Sprintf("%s and %s both name table %q", other, tbl.field, tbl.name), nil)
		}
		seen[tbl.name] = tbl.field
	}
	return nil
}

func (c *CadastreDatabase) validate() error {
	if c.Separate() {
		if err := c.Connection.validate("cadastre_database"); err != nil {
			return err
		}
	}
	if err := validIdent("cadastre_database", "schema", c.Schema); err != nil {
		return err
	}
	return validIdent("cadastre_database", "table", c.Table)
}

func (c *Connection) validate(section string) error {
	if c.Host == "" {
		return pkgerrors.NewConfigError(section, "host is required", nil)
	}
	if c.Port < 1 || c.Port > 65535 {
		return pkgerrors.NewConfigError(section,
			fmt.Sprintf("port %d outside 1-65535", c.Port), nil)
	}
	if c.Name == "" {
		return pkgerrors.NewConfigError(section, "name is required", nil)
	}
	if c.User == "" {
		return pkgerrors.NewConfigError(section, "user is required", nil)
	}
	return nil
}

func (p *PairingSettings) validate() error {
	if p.Threshold < 0 || p.Threshold > 1 {
		return pkgerrors.NewConfigError("pairing",
			fmt.Sprintf("threshold %g outside [0,1]", p.Threshold), nil)
	}
	if _, err := inventory.ParseMode(p.Mode); err != nil {
		return pkgerrors.NewConfigError("pairing", "invalid mode", err)
	}
	if p.Workers < 0 {
		return pkgerrors.NewConfigError("pairing",
			fmt.Sprintf("workers %d is negative", p.Workers), nil)
	}
	return nil
}

func (g *GeometrizeSettings) validate() error {
	if g.BatchSize < 1 || g.BatchSize > constants.MaxBatchSize {
		return pkgerrors.NewConfigError("geometrize",
			fmt.Sprintf("batch_size %d outside 1-%d", g.BatchSize, constants.MaxBatchSize), nil)
	}
	return nil
}

func (i *ImportSettings) validate() error {
	if i.APIURL != "" && i.DemarcheID < 1 {
		return pkgerrors.NewConfigError("import",
			"demarche_id is required when api_url is set", nil)
	}
	return nil
}

func validIdent(section, field, name string) error {
	if name == "" {
		return pkgerrors.NewConfigError(section, field+" is required", nil)
	}
	if !identPattern.MatchString(name) {
		return pkgerrors.NewConfigError(section,
			fmt.Sprintf("%s %q is not a plain identifier", field, name), nil)
	}
	return nil
}

// Mode parses the configured pairing mode. Call after Validate.
func (p *PairingSettings) ParsedMode() inventory.Mode {
	mode, err := inventory.ParseMode(p.Mode)
	if err != nil {
		return inventory.ModeManyToMany
	}
	return mode
}
