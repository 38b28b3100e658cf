package navigation

import (
	"errors"
	"fmt"
)

// Drawer is a slide-over panel opened from the sidebar footer.
type Drawer string

const (
	DrawerNone      Drawer = ""
	DrawerHelp      Drawer = "help"
	DrawerResources Drawer = "resources"
	DrawerProfile   Drawer = "profile"
)

// Chrome holds the presentation state of the shell around the active panel.
type Chrome struct {
	SidebarOpen      bool   `json:"sidebar_open"`
	SidebarCollapsed bool   `json:"sidebar_collapsed"`
	DarkMode         bool   `json:"dark_mode"`
	Drawer           Drawer `json:"drawer,omitempty"`
	AssistantOpen    bool   `json:"assistant_open"`
	DateRange        string `json:"date_range"`
}

// Chrome actions accepted by ApplyChromeAction.
const (
	ActionToggleSidebar   = "toggle_sidebar"
	ActionCloseSidebar    = "close_sidebar"
	ActionToggleCollapse  = "toggle_collapse"
	ActionToggleTheme     = "toggle_theme"
	ActionOpenDrawer      = "open_drawer"
	ActionCloseDrawer     = "close_drawer"
	ActionToggleAssistant = "toggle_assistant"
)

var ErrUnknownChromeAction = errors.New("unknown chrome action")

// ApplyChromeAction returns the chrome after applying action. It never touches
// page or selection state.
func ApplyChromeAction(c Chrome, action, arg string) (Chrome, error) {
	switch action {
	case ActionToggleSidebar:
		c.SidebarOpen = !c.SidebarOpen
	case ActionCloseSidebar:
		c.SidebarOpen = false
	case ActionToggleCollapse:
		c.SidebarCollapsed = !c.SidebarCollapsed
	case ActionToggleTheme:
		c.DarkMode = !c.DarkMode
	case ActionOpenDrawer:
		d := Drawer(arg)
		switch d {
		case DrawerHelp, DrawerResources, DrawerProfile:
			c.Drawer = d
		default:
			return c, fmt.Errorf("drawer %q: %w", arg, ErrUnknownChromeAction)
		}
	case ActionCloseDrawer:
		c.Drawer = DrawerNone
	case ActionToggleAssistant:
		c.AssistantOpen = !c.AssistantOpen
	default:
		return c, fmt.Errorf("%q: %w", action, ErrUnknownChromeAction)
	}
	return c, nil
}
