package game

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	CoefStatusOK  = "OK"
	AllOnesStatus = "All coefficients are equal to 1.0"
)

// Coefficient is one cell of the table returned by the pricing service.
type Coefficient struct {
	HitCoeff  decimal.Decimal `json:"hitCoeff"`
	MissCoeff decimal.Decimal `json:"missCoeff"`
}

// ParseTable decodes a coefficient table: rows of time indexes, each a row of price cells.
func ParseTable(table string) ([][]Coefficient, error) {
	var rows [][]Coefficient
	if err := json.Unmarshal([]byte(table), &rows); err != nil {
		return nil, fmt.Errorf("parse coefficient table: %w", err)
	}
	return rows, nil
}

// TableStatus returns CoefStatusOK, AllOnesStatus or a parse failure message.
func TableStatus(table string) string {
	rows, err := ParseTable(table)
	if err != nil {
		return "Invalid coefficient table: " + err.Error()
	}
	one := decimal.NewFromInt(1)
	for _, row := range rows {
		for _, c := range row {
			if !c.HitCoeff.Equal(one) || !c.MissCoeff.Equal(one) {
				return CoefStatusOK
			}
		}
	}
	return AllOnesStatus
}

// EmptyTable is the table served when the asset has no recent prices.
func EmptyTable() string {
	cell := `{"hitCoeff":1.0,"missCoeff":1.0}`
	row := "[" + strings.TrimSuffix(strings.Repeat(cell+",", NPriceIndex), ",") + "]"
	return "[" + strings.TrimSuffix(strings.Repeat(row+",", NTimeIndex), ",") + "]"
}

// CoefficientCache keeps the last fetched table and its status per asset.
type CoefficientCache struct {
	mx       sync.RWMutex
	tables   map[string]string
	statuses map[string]string
}

func NewCoefficientCache() *CoefficientCache {
	return &CoefficientCache{
		tables:   make(map[string]string),
		statuses: make(map[string]string),
	}
}

// Set replaces the asset's table and returns its new and previous status.
func (c *CoefficientCache) Set(pair, table string) (status, previous string) {
	status = TableStatus(table)

	c.mx.Lock()
	defer c.mx.Unlock()

	previous = c.statuses[pair]
	c.tables[pair] = table
	c.statuses[pair] = status

	return status, previous
}

func (c *CoefficientCache) Get(pair string) (string, bool) {
	c.mx.RLock()
	defer c.mx.RUnlock()

	table, ok := c.tables[pair]
	return table, ok
}

func (c *CoefficientCache) Len() int {
	c.mx.RLock()
	defer c.mx.RUnlock()
	return len(c.tables)
}
