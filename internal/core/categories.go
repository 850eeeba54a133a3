package core

// Category is a top-level spending category with its allowed subcategories.
type Category struct {
	Name          string
	Subcategories []string
}

// Categories is the fixed taxonomy used by classification and by the
// category editor, in display order.
var Categories = []Category{
	{Name: "Alimentación", Subcategories: []string{"Supermercado", "Restaurantes", "Comida rápida", "Cafeterías"}},
	{Name: "Transporte", Subcategories: []string{"Combustible", "Transporte público", "Taxi/VTC", "Parking", "Peajes"}},
	{Name: "Hogar", Subcategories: []string{"Alquiler", "Hipoteca", "Suministros", "Mantenimiento", "Seguros hogar"}},
	{Name: "Salud", Subcategories: []string{"Farmacia", "Médico", "Dentista", "Óptica", "Seguro médico"}},
	{Name: "Ocio", Subcategories: []string{"Entretenimiento", "Viajes", "Deportes", "Suscripciones", "Cultura"}},
	{Name: "Compras", Subcategories: []string{"Ropa", "Electrónica", "Hogar", "Otros"}},
	{Name: "Finanzas", Subcategories: []string{"Transferencias", "Comisiones", "Impuestos", "Seguros"}},
	{Name: "Ingresos", Subcategories: []string{"Nómina", "Transferencia recibida", "Devolución", "Otros ingresos"}},
	{Name: "Otros", Subcategories: []string{"Sin categoría"}},
}

const (
	DefaultCategory       = "Otros"
	DefaultSubcategory    = "Sin categoría"
	IncomeCategory        = "Ingresos"
	DefaultIncomeCategory = "Otros ingresos"
)

// CategoryNames returns the top-level category names in display order.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = c.Name
	}
	return names
}

// IsKnownCategory reports whether name is a top-level category.
func IsKnownCategory(name string) bool {
	for _, c := range Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}
