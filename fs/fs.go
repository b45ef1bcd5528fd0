package appfs

import "embed"

// FS embeds the app's static assets: DB migrations and email templates.
//go:embed migrations templates
var FS embed.FS
