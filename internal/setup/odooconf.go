// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package setup

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"
)

// ConfigFileName is the file written into the source directory.
const ConfigFileName = "odoo.conf"

// XMLRPCPort is the port the generated configuration serves on.
const XMLRPCPort = 8069

// OdooConf holds the values rendered into odoo.conf.
type OdooConf struct {
	AddonsPath string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	XMLRPCPort int
}

var confTemplate = template.Must(template.New("odoo.conf").Parse(`# Auto-generated Odoo configuration file
addons_path = {{ .AddonsPath }}
db_host = {{ .DBHost }}
db_port = {{ .DBPort }}
db_user = {{ .DBUser }}
db_password = {{ .DBPassword }}
xmlrpc_port = {{ .XMLRPCPort }}
`))

// DefaultConf returns the fixed configuration for a source tree.
func DefaultConf(sourcePath string) OdooConf {
	return OdooConf{
		AddonsPath: filepath.Join(sourcePath, "addons"),
		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "odoo",
		DBPassword: "odoo",
		XMLRPCPort: XMLRPCPort,
	}
}

// Render generates the odoo.conf file content.
func (c OdooConf) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := confTemplate.Execute(&buf, c); err != nil {
		return nil, fmt.Errorf("render odoo.conf: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderConfig renders the default configuration for sourcePath.
func RenderConfig(sourcePath string) ([]byte, error) {
	return DefaultConf(sourcePath).Render()
}

// ConfigPath is where Configure writes odoo.conf for sourcePath.
func ConfigPath(sourcePath string) string {
	return filepath.Join(sourcePath, ConfigFileName)
}
