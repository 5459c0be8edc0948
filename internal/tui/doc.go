// Package tui provides terminal user interface components for keypool.
//
// This package uses the Bubble Tea framework for the live dashboard and
// lipgloss for the one-shot status view.
//
// # Dashboard
//
// The dashboard polls the control surface and redraws pool state:
//
//	c := client.New(cfg.ControlURL())
//	err := tui.RunDashboard(c.Status, c.BaseURL(), 2*time.Second)
//
// Keys: r (refresh now), q or ctrl+c (quit).
//
// # Status rendering
//
// RenderStatus formats a status response with colored availability:
//
//	fmt.Println(tui.RenderStatus(st))
package tui
