package domain

// Типы источников слоя единиц
const (
	LayerSourceGrid      = "grid"
	LayerSourceGeoJSON   = "geojson"
	LayerSourceShapefile = "shapefile"
	LayerSourcePostGIS   = "postgis"
)

// LayerSource описывает, откуда загружается слой единиц одного типа
type LayerSource struct {
	Type string `json:"type" mapstructure:"type" validate:"required,oneof=grid geojson shapefile postgis"`
	EPSG int    `json:"epsg" mapstructure:"epsg" validate:"required,gt=0"`

	// geojson, shapefile
	Path string `json:"path,omitempty" mapstructure:"path"`

	// postgis
	Table      string `json:"table,omitempty" mapstructure:"table"`
	GeomColumn string `json:"geom_column,omitempty" mapstructure:"geom_column"`

	IDField   string `json:"id_field,omitempty" mapstructure:"id_field"`
	NameField string `json:"name_field,omitempty" mapstructure:"name_field"`

	// grid
	Grid *GridSpec `json:"grid,omitempty" mapstructure:"grid" validate:"omitempty"`
}

// CRS возвращает объявленную систему координат слоя
func (s LayerSource) CRS() CRS {
	return NewCRS(s.EPSG)
}
