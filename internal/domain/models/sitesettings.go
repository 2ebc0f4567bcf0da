// internal/domain/models/sitesettings.go
package models

// DefaultSiteName is shown in the menu header and page titles.
const DefaultSiteName = "会員管理"

// DefaultFooterHTML is rendered at the bottom of every page.
const DefaultFooterHTML = `<p>&copy; Baby Massage &amp; Yoga Association</p>`
