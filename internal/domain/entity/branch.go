package entity

import "time"

// Branch representa una sucursal de la cadena donde se almacena inventario.
// City y Province solo se usan para la heurística de distancia en traslados;
// inmutable una vez referenciada por lotes o traslados, salvo el flag Active.
type Branch struct {
	ID        string
	Name      string
	City      string
	Province  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
