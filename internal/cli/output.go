// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyutils.
//
// go-keyutils is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-keyutils/pkg/keyring"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// TreeEntry is one row of a recursive keyring listing
type TreeEntry struct {
	Depth       int
	ID          types.ID
	Kind        string
	Type        string
	Description string
}

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintSerial prints a key serial number
func (p *Printer) PrintSerial(id types.ID) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"serial": id,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, id)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKeyInfo prints detailed key information
func (p *Printer) PrintKeyInfo(id types.ID, meta types.Metadata) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"serial":      id,
			"type":        meta.Type,
			"uid":         meta.UID,
			"gid":         meta.GID,
			"permissions": fmt.Sprintf("0x%08x", meta.Permissions.Mask()),
			"description": meta.Description,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Key Information:\n")
		fmt.Fprintf(p.writer, "  Serial:      %d\n", id)
		fmt.Fprintf(p.writer, "  Type:        %s\n", meta.Type)
		fmt.Fprintf(p.writer, "  UID:         %d\n", meta.UID)
		fmt.Fprintf(p.writer, "  GID:         %d\n", meta.GID)
		fmt.Fprintf(p.writer, "  Permissions: %s (0x%08x)\n", meta.Permissions, meta.Permissions.Mask())
		fmt.Fprintf(p.writer, "  Description: %s\n", meta.Description)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintDescribe prints a raw describe string
func (p *Printer) PrintDescribe(raw string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"describe": raw,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, raw)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintLinkList prints the links of a keyring
func (p *Printer) PrintLinkList(ringID types.ID, nodes []keyring.LinkNode) error {
	switch p.format {
	case OutputFormatJSON:
		links := make([]map[string]interface{}, len(nodes))
		for i, node := range nodes {
			meta := node.Metadata()
			links[i] = map[string]interface{}{
				"serial":      node.ID(),
				"kind":        node.Kind(),
				"type":        meta.Type,
				"description": meta.Description,
			}
		}
		return p.printJSON(map[string]interface{}{
			"keyring": ringID,
			"count":   len(nodes),
			"links":   links,
		})
	case OutputFormatTable:
		if len(nodes) == 0 {
			fmt.Fprintln(p.writer, "No links found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-12s %-8s %-10s %s\n", "SERIAL", "KIND", "TYPE", "DESCRIPTION")
		fmt.Fprintln(p.writer, strings.Repeat("-", 60))
		for _, node := range nodes {
			meta := node.Metadata()
			fmt.Fprintf(p.writer, "%-12d %-8s %-10s %s\n",
				node.ID(), node.Kind(), meta.Type, meta.Description)
		}
		return nil
	case OutputFormatText:
		if len(nodes) == 0 {
			fmt.Fprintf(p.writer, "keyring %d is empty\n", ringID)
			return nil
		}
		fmt.Fprintf(p.writer, "keyring %d: %d link(s)\n", ringID, len(nodes))
		for _, node := range nodes {
			meta := node.Metadata()
			fmt.Fprintf(p.writer, "  - %d (%s) %s\n", node.ID(), meta.Type, meta.Description)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintTree prints a recursive keyring listing
func (p *Printer) PrintTree(entries []TreeEntry) error {
	switch p.format {
	case OutputFormatJSON:
		rows := make([]map[string]interface{}, len(entries))
		for i, e := range entries {
			rows[i] = map[string]interface{}{
				"depth":       e.Depth,
				"serial":      e.ID,
				"kind":        e.Kind,
				"type":        e.Type,
				"description": e.Description,
			}
		}
		return p.printJSON(map[string]interface{}{
			"tree": rows,
		})
	case OutputFormatTable, OutputFormatText:
		for _, e := range entries {
			indent := strings.Repeat("  ", e.Depth)
			fmt.Fprintf(p.writer, "%s%d: %s %s\n", indent, e.ID, e.Type, e.Description)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPayload prints a key payload. Text output prints printable
// payloads verbatim and hex-encodes binary ones the way keyctl print
// does; JSON output always base64-encodes.
func (p *Printer) PrintPayload(data []byte) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"payload": base64.StdEncoding.EncodeToString(data),
			"length":  len(data),
		})
	case OutputFormatTable, OutputFormatText:
		if isPrintable(data) {
			fmt.Fprintln(p.writer, string(data))
		} else {
			fmt.Fprintf(p.writer, ":hex:%s\n", hex.EncodeToString(data))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON marshals and prints data as indented JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// isPrintable reports whether the payload is safe to write to a
// terminal as-is
func isPrintable(data []byte) bool {
	for _, b := range data {
		if b == '\n' || b == '\t' {
			continue
		}
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}
