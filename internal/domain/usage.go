package domain

import (
	"encoding/json"
	"time"
)

// Language es el conjunto cerrado de lenguajes con contador de uso.
type Language int

const (
	LangPython Language = iota
	LangJavaScript
	LangHTMLJSCSS
	LangC
	LangCPP
	LangJava
	LangCSharp
	LangRust
	LangGo
	LangSQL
	LangMongoDB
	LangSwift
	LangRuby
	LangTypeScript
	LangDart
	LangKotlin
	LangPerl
	LangScala
	LangJulia
	LangVerilog

	languageCount
)

// storage keys, indexed by Language
var languageKeys = [languageCount]string{
	"py", "js", "HtmlJsCss", "c", "cpp", "java", "cs", "rust", "go", "sql",
	"mongodb", "swift", "ruby", "ts", "dart", "kt", "perl", "scala", "julia", "verilog",
}

// nombres que envia el editor
var languageNames = map[string]Language{
	"python":     LangPython,
	"javascript": LangJavaScript,
	"HtmlJsCss":  LangHTMLJSCSS,
	"c":          LangC,
	"cpp":        LangCPP,
	"java":       LangJava,
	"csharp":     LangCSharp,
	"rust":       LangRust,
	"go":         LangGo,
	"sql":        LangSQL,
	"mongodb":    LangMongoDB,
	"swift":      LangSwift,
	"ruby":       LangRuby,
	"typescript": LangTypeScript,
	"dart":       LangDart,
	"kotlin":     LangKotlin,
	"perl":       LangPerl,
	"scala":      LangScala,
	"julia":      LangJulia,
	"verilog":    LangVerilog,
}

// ParseLanguage traduce el nombre del editor al lenguaje enumerado.
func ParseLanguage(name string) (Language, bool) {
	l, ok := languageNames[name]
	return l, ok
}

// ParseLanguageKey traduce una clave de almacenamiento ("py", "cs", ...).
func ParseLanguageKey(key string) (Language, bool) {
	for i, k := range languageKeys {
		if k == key {
			return Language(i), true
		}
	}
	return 0, false
}

// Key devuelve la clave de almacenamiento del lenguaje.
func (l Language) Key() string {
	if l < 0 || l >= languageCount {
		return ""
	}
	return languageKeys[l]
}

func (l Language) String() string { return l.Key() }

// Languages devuelve todos los lenguajes conocidos en orden.
func Languages() []Language {
	out := make([]Language, languageCount)
	for i := range out {
		out[i] = Language(i)
	}
	return out
}

// CounterKind identifica cada mapa de contadores del usuario.
type CounterKind int

const (
	CounterGenerate CounterKind = iota
	CounterRefactor
	CounterRun
)

func (k CounterKind) String() string {
	switch k {
	case CounterGenerate:
		return "generate"
	case CounterRefactor:
		return "refactor"
	case CounterRun:
		return "run"
	default:
		return ""
	}
}

// ParseCounterKind traduce el nombre almacenado del contador.
func ParseCounterKind(s string) (CounterKind, bool) {
	switch s {
	case "generate":
		return CounterGenerate, true
	case "refactor":
		return CounterRefactor, true
	case "run":
		return CounterRun, true
	default:
		return 0, false
	}
}

// Supports indica si el contador registra el lenguaje. El runner no ejecuta
// proyectos HtmlJsCss.
func (k CounterKind) Supports(l Language) bool {
	if l < 0 || l >= languageCount {
		return false
	}
	return !(k == CounterRun && l == LangHTMLJSCSS)
}

// Counters es un contador por lenguaje; cada lenguaje arranca en cero.
type Counters [languageCount]int64

// Map expone los contadores con sus claves de almacenamiento.
func (c Counters) Map(kind CounterKind) map[string]int64 {
	out := make(map[string]int64, languageCount)
	for i, n := range c {
		l := Language(i)
		if !kind.Supports(l) {
			continue
		}
		out[l.Key()] = n
	}
	return out
}

// UsageCounters agrupa los tres mapas de contadores del usuario.
type UsageCounters struct {
	Generate Counters
	Refactor Counters
	Run      Counters
}

// Of devuelve un puntero al mapa del tipo pedido.
func (u *UsageCounters) Of(kind CounterKind) *Counters {
	switch kind {
	case CounterGenerate:
		return &u.Generate
	case CounterRefactor:
		return &u.Refactor
	default:
		return &u.Run
	}
}

func (u UsageCounters) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string]int64{
		"generateCodeCount": u.Generate.Map(CounterGenerate),
		"refactorCodeCount": u.Refactor.Map(CounterRefactor),
		"runCodeCount":      u.Run.Map(CounterRun),
	})
}

// SharedLink es una referencia compartida registrada por el usuario.
type SharedLink struct {
	ShareID   string    `json:"shareId"`
	Title     string    `json:"title"`
	ExpiresAt time.Time `json:"expiryTime"`
}

// Expired indica si el enlace vencio en now.
func (l SharedLink) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// AuditAction es la accion registrada en el espejo de auditoria.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)
