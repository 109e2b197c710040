// Package models defines the data structures shared by the catalog, the API and its clients.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one catalog row as served by /api/promotores.
type Record struct {
	OP          string   `csv:"op" json:"op"`
	Cliente     string   `csv:"cliente" json:"cliente"`
	Nombre      string   `csv:"nombre" json:"nombre"`
	Descripcion string   `csv:"descripcion" json:"descripcion"`
	Cantidad    Quantity `csv:"cantidad" json:"cantidad"`
	Talla       string   `csv:"talla" json:"talla"`
	QR          string   `csv:"qr" json:"qr"`
	Enlace      string   `csv:"enlace" json:"enlace"`
}

// Quantity holds the cantidad column, which data files and older servers
// emit either as a JSON string or as a JSON number.
type Quantity string

// String returns the quantity as display text.
func (q Quantity) String() string {
	return string(q)
}

// MarshalText implements encoding.TextMarshaler.
func (q Quantity) MarshalText() ([]byte, error) {
	return []byte(q), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quantity) UnmarshalText(text []byte) error {
	*q = Quantity(strings.TrimSpace(string(text)))
	return nil
}

// MarshalJSON always emits a string.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(q))
}

// UnmarshalJSON accepts a string, a number or null.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*q = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode cantidad: %w", err)
		}
		*q = Quantity(s)
		return nil
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("decode cantidad %s: %w", data, err)
	}
	*q = Quantity(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// RecordColumns lists the canonical record fields in wire order.
var RecordColumns = []string{"op", "cliente", "nombre", "descripcion", "cantidad", "talla", "enlace", "qr"}

// Field returns the value of a canonical column name, or "" when unknown.
func (r Record) Field(name string) string {
	switch name {
	case "op":
		return r.OP
	case "cliente":
		return r.Cliente
	case "nombre":
		return r.Nombre
	case "descripcion":
		return r.Descripcion
	case "cantidad":
		return r.Cantidad.String()
	case "talla":
		return r.Talla
	case "qr":
		return r.QR
	case "enlace":
		return r.Enlace
	default:
		return ""
	}
}

// SetField assigns a canonical column by name. Unknown names are ignored.
func (r *Record) SetField(name, value string) {
	switch name {
	case "op":
		r.OP = value
	case "cliente":
		r.Cliente = value
	case "nombre":
		r.Nombre = value
	case "descripcion":
		r.Descripcion = value
	case "cantidad":
		r.Cantidad = Quantity(strings.TrimSpace(value))
	case "talla":
		r.Talla = value
	case "qr":
		r.QR = value
	case "enlace":
		r.Enlace = value
	}
}

// Key identifies a record for de-duplication across overlapping searches.
func (r Record) Key() string {
	return strings.Join([]string{r.OP, r.Cliente, r.Nombre, r.Descripcion, r.Cantidad.String(), r.Talla, r.QR, r.Enlace}, "\x1f")
}
