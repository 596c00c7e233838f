package cliui

import "fmt"

// Message keys.
const (
	MsgNoAPIKey      = "noApiKey"
	MsgFileSaved     = "fileSaved"
	MsgFileSaveError = "fileSaveError"
	MsgCooldown      = "cooldown"
	MsgFileProgress  = "fileProgress"
	MsgPromptDone    = "promptDone"
	MsgPromptFailed  = "promptFailed"
	MsgQueueDone     = "queueDone"
	MsgStopped       = "stopped"
	MsgWatching      = "watching"
	MsgChanged       = "changed"
	MsgReplHelp      = "replHelp"
	MsgHistoryReset  = "historyReset"
	MsgHistoryOn     = "historyOn"
	MsgHistoryOff    = "historyOff"
	MsgAttached      = "attached"
	MsgDetached      = "detached"
	MsgNoFiles       = "noFiles"
	MsgNothingToSave = "nothingToSave"
	MsgUnknownCmd    = "unknownCommand"
)

var catalogs = map[string]map[string]string{
	"pl": {
		MsgNoAPIKey:      "Brak klucza API. Uruchom `mdpilot auth` lub ustaw MDPILOT_API_KEY.",
		MsgFileSaved:     "Zapisano plik: %s",
		MsgFileSaveError: "Nie udało się zapisać pliku",
		MsgCooldown:      "Odczekuję %s przed kolejnym zapytaniem...",
		MsgFileProgress:  "Plik %d/%d: %s",
		MsgPromptDone:    "Zapytanie %d/%d zakończone",
		MsgPromptFailed:  "Zapytanie %d/%d nie powiodło się: %v",
		MsgQueueDone:     "Gotowe: %d udanych, %d nieudanych, %d zapisanych plików",
		MsgStopped:       "Przerwano",
		MsgWatching:      "Obserwuję %d plik(ów). Ctrl+C kończy.",
		MsgChanged:       "Zmiana w %s",
		MsgReplHelp:      "Polecenia: /attach <plik>, /detach, /files, /clear, /history on|off, /save, /quit",
		MsgHistoryReset:  "Historia wyczyszczona",
		MsgHistoryOn:     "Historia będzie dołączana do zapytań",
		MsgHistoryOff:    "Historia nie będzie dołączana do zapytań",
		MsgAttached:      "Dołączono plik: %s",
		MsgDetached:      "Odłączono wszystkie pliki",
		MsgNoFiles:       "Brak dołączonych plików",
		MsgNothingToSave: "Ostatnia odpowiedź nie zawiera dokumentów do zapisania",
		MsgUnknownCmd:    "Nieznane polecenie: %s",
	},
	"en": {
		MsgNoAPIKey:      "No API key. Run `mdpilot auth` or set MDPILOT_API_KEY.",
		MsgFileSaved:     "Saved file: %s",
		MsgFileSaveError: "Could not save file",
		MsgCooldown:      "Waiting %s before the next request...",
		MsgFileProgress:  "File %d/%d: %s",
		MsgPromptDone:    "Request %d/%d done",
		MsgPromptFailed:  "Request %d/%d failed: %v",
		MsgQueueDone:     "Done: %d succeeded, %d failed, %d files saved",
		MsgStopped:       "Stopped",
		MsgWatching:      "Watching %d file(s). Ctrl+C to stop.",
		MsgChanged:       "Changed: %s",
		MsgReplHelp:      "Commands: /attach <file>, /detach, /files, /clear, /history on|off, /save, /quit",
		MsgHistoryReset:  "History cleared",
		MsgHistoryOn:     "History will be sent with requests",
		MsgHistoryOff:    "History will not be sent with requests",
		MsgAttached:      "Attached: %s",
		MsgDetached:      "Detached all files",
		MsgNoFiles:       "No attached files",
		MsgNothingToSave: "The last answer has no documents to save",
		MsgUnknownCmd:    "Unknown command: %s",
	},
}

// Messages formats user-facing CLI text in one language.
type Messages struct {
	lang string
}

// NewMessages returns messages for lang, falling back to English.
func NewMessages(lang string) Messages {
	if _, ok := catalogs[lang]; !ok {
		lang = "en"
	}
	return Messages{lang: lang}
}

// Lang is the resolved language.
func (m Messages) Lang() string {
	return m.lang
}

// T formats the message for key. Unknown keys are returned as is.
func (m Messages) T(key string, args ...any) string {
	format, ok := catalogs[m.lang][key]
	if !ok {
		format, ok = catalogs["en"][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
