package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// CRS - идентификатор системы координат (EPSG код).
// Нулевое значение означает "неизвестно".
type CRS struct {
	EPSG int `json:"epsg" db:"epsg"`
}

// NewCRS создает CRS по EPSG коду
func NewCRS(epsg int) CRS {
	return CRS{EPSG: epsg}
}

// IsKnown проверяет, что код задан
func (c CRS) IsKnown() bool {
	return c.EPSG > 0
}

func (c CRS) String() string {
	if !c.IsKnown() {
		return "EPSG:unknown"
	}
	return fmt.Sprintf("EPSG:%d", c.EPSG)
}

// ParseCRS разбирает идентификатор CRS.
// Поддерживаются формы: "EPSG:3577", "epsg:3577", "urn:ogc:def:crs:EPSG::3577", "3577".
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CRS{}, fmt.Errorf("empty CRS identifier")
	}

	code := s
	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "URN:OGC:DEF:CRS:EPSG:"):
		// urn:ogc:def:crs:EPSG::3577 или urn:ogc:def:crs:EPSG:6.6:3577
		code = s[strings.LastIndex(s, ":")+1:]
	case strings.HasPrefix(upper, "EPSG:"):
		code = s[len("EPSG:"):]
	}

	epsg, err := strconv.Atoi(code)
	if err != nil || epsg <= 0 {
		return CRS{}, fmt.Errorf("invalid CRS identifier %q", s)
	}

	return CRS{EPSG: epsg}, nil
}
