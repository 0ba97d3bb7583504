package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/dubforge-backend/internal/platform/envutil"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// Voice is one entry of the catalog. Engine selects the synthesizer:
// "piper" voices run locally and need a model path, "azure" voices are
// neural voices addressed by name.
type Voice struct {
	Name     string `yaml:"name" json:"name"`
	Engine   string `yaml:"engine" json:"engine"`
	Model    string `yaml:"model,omitempty" json:"-"`
	Language string `yaml:"language,omitempty" json:"language,omitempty"`
}

type voiceCatalogFile struct {
	DefaultVoice string  `yaml:"default_voice"`
	Voices       []Voice `yaml:"voices"`
}

// VoiceCatalog is the static list of voices narrations may request,
// loaded once at startup from VOICES_CONFIG_PATH.
type VoiceCatalog interface {
	List() []Voice
	Get(name string) (Voice, bool)
	Default() Voice
}

type voiceCatalog struct {
	log          *logger.Logger
	voices       []Voice
	byName       map[string]Voice
	defaultVoice Voice
}

func NewVoiceCatalog(log *logger.Logger) (VoiceCatalog, error) {
	slog := log.With("service", "VoiceCatalog")
	path := envutil.GetEnv("VOICES_CONFIG_PATH", "voices.yaml", log)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voice catalog %q: %w", path, err)
	}
	var file voiceCatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse voice catalog %q: %w", path, err)
	}
	if len(file.Voices) == 0 {
		return nil, fmt.Errorf("voice catalog %q lists no voices", path)
	}

	byName := make(map[string]Voice, len(file.Voices))
	for _, v := range file.Voices {
		if v.Name == "" {
			return nil, fmt.Errorf("voice catalog %q has an unnamed voice", path)
		}
		switch v.Engine {
		case "piper":
			if v.Model == "" {
				return nil, fmt.Errorf("piper voice %q needs a model path", v.Name)
			}
		case "azure":
		default:
			return nil, fmt.Errorf("voice %q has unknown engine %q", v.Name, v.Engine)
		}
		byName[v.Name] = v
	}

	def, ok := byName[file.DefaultVoice]
	if !ok {
		def = file.Voices[0]
	}

	slog.Info("voice catalog loaded", "path", path, "voices", len(file.Voices), "default", def.Name)
	return &voiceCatalog{
		log:          slog,
		voices:       file.Voices,
		byName:       byName,
		defaultVoice: def,
	}, nil
}

func (vc *voiceCatalog) List() []Voice {
	out := make([]Voice, len(vc.voices))
	copy(out, vc.voices)
	return out
}

func (vc *voiceCatalog) Get(name string) (Voice, bool) {
	v, ok := vc.byName[name]
	return v, ok
}

func (vc *voiceCatalog) Default() Voice { return vc.defaultVoice }
