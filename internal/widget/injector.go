package widget

import (
	"fmt"
	"html"
	"strings"

	"github.com/chatlink/chatlink/internal/store"
)

// DefaultScriptURL is the hosted widget loader.
const DefaultScriptURL = "https://chatmaxima.com/widget/loader.js"

// Injector renders the chat widget embed snippet for installed channels.
type Injector struct {
	settings  store.SettingsStore
	scriptURL string
}

// NewInjector creates a widget injector. An empty scriptURL falls back to
// the hosted loader.
func NewInjector(settings store.SettingsStore, scriptURL string) *Injector {
	if strings.TrimSpace(scriptURL) == "" {
		scriptURL = DefaultScriptURL
	}
	return &Injector{settings: settings, scriptURL: scriptURL}
}

// Installed reports whether a widget is currently installed.
func (i *Injector) Installed() bool {
	_, ok := i.snippetToken()
	return ok
}

// snippetToken returns the identifier the embed snippet should carry: the
// installed channel alias, or the raw widget token when one was saved
// manually.
func (i *Injector) snippetToken() (string, bool) {
	if alias, ok := i.settings.Get(store.SettingInstalledChannel); ok && alias != "" {
		return alias, true
	}
	if token, ok := i.settings.Get(store.SettingWidgetTokenID); ok && token != "" {
		return token, true
	}
	return "", false
}

// Snippet returns the embed markup, or false when no widget is installed.
// The marker attributes keep page optimizers and CDN rewriters from
// touching the script tag.
func (i *Injector) Snippet() (string, bool) {
	token, ok := i.snippetToken()
	if !ok {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<script src=%q data-token=%q`,
		html.EscapeString(i.scriptURL), html.EscapeString(token))
	if color, ok := i.settings.Get(store.SettingThemeColor); ok && color != "" {
		fmt.Fprintf(&b, ` data-theme-color=%q`, html.EscapeString(color))
	}
	if social, ok := i.settings.Get(store.SettingSocialMedia); ok && social != "" {
		fmt.Fprintf(&b, ` data-social=%q`, html.EscapeString(social))
	}
	b.WriteString(` data-no-optimize="1" data-cfasync="false" async></script>`)
	return b.String(), true
}

// Install records a channel alias as the installed widget.
func (i *Injector) Install(channelAlias string) error {
	if strings.TrimSpace(channelAlias) == "" {
		return i.settings.Delete(store.SettingInstalledChannel)
	}
	return i.settings.Set(store.SettingInstalledChannel, channelAlias)
}

// Uninstall removes the installed widget. The selected channel is left
// alone: selection and installation are independent states.
func (i *Injector) Uninstall() error {
	if err := i.settings.Delete(store.SettingInstalledChannel); err != nil {
		return err
	}
	return i.settings.Delete(store.SettingWidgetTokenID)
}
