package domain

import "strings"

// District is a Sofia administrative district with its map center.
type District struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
}

// Coordinates is a resolved map position for an outage.
type Coordinates struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	District string  `json:"district"`
}

// SofiaCenter is used when no district matches.
var SofiaCenter = Coordinates{Lat: 42.6977, Lng: 23.3219, District: "София"}

// SofiaDistricts lists the districts known to the map, in match order.
var SofiaDistricts = []District{
	{Name: "Център", Lat: 42.6977, Lng: 23.3219, Zoom: 15},
	{Name: "Младост", Lat: 42.6506, Lng: 23.375, Zoom: 14},
	{Name: "Люлин", Lat: 42.7089, Lng: 23.2419, Zoom: 14},
	{Name: "Студентски град", Lat: 42.6536, Lng: 23.3547, Zoom: 15},
	{Name: "Лозенец", Lat: 42.6833, Lng: 23.3333, Zoom: 15},
	{Name: "Оборище", Lat: 42.7, Lng: 23.33, Zoom: 15},
	{Name: "Дружба", Lat: 42.6444, Lng: 23.3889, Zoom: 14},
	{Name: "Овча купел", Lat: 42.6667, Lng: 23.2333, Zoom: 14},
	{Name: "Красно село", Lat: 42.6867, Lng: 23.2867, Zoom: 14},
	{Name: "Красна поляна", Lat: 42.7033, Lng: 23.2767, Zoom: 14},
	{Name: "Витоша", Lat: 42.6333, Lng: 23.3, Zoom: 14},
	{Name: "Сердика", Lat: 42.7, Lng: 23.32, Zoom: 15},
	{Name: "Възраждане", Lat: 42.7, Lng: 23.31, Zoom: 15},
	{Name: "Подуяне", Lat: 42.72, Lng: 23.35, Zoom: 14},
	{Name: "Слатина", Lat: 42.7, Lng: 23.37, Zoom: 14},
	{Name: "Илинден", Lat: 42.7167, Lng: 23.3, Zoom: 14},
	{Name: "Надежда", Lat: 42.73, Lng: 23.29, Zoom: 14},
	{Name: "Искър", Lat: 42.65, Lng: 23.4, Zoom: 14},
	{Name: "Панчарево", Lat: 42.5833, Lng: 23.4167, Zoom: 14},
	{Name: "Банкя", Lat: 42.7167, Lng: 23.15, Zoom: 14},
}

// Locate resolves an outage to the center of the first district whose name
// occurs in its district or area text.
func Locate(o Outage) Coordinates {
	district := strings.ToLower(o.District)
	area := strings.ToLower(o.Area)
	for _, d := range SofiaDistricts {
		name := strings.ToLower(d.Name)
		if strings.Contains(district, name) || strings.Contains(area, name) {
			return Coordinates{Lat: d.Lat, Lng: d.Lng, District: d.Name}
		}
	}
	return SofiaCenter
}
