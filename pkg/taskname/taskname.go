package taskname

const (
	// Dictamen tasks
	DictamenNotificar = "dictamen:notificar"

	// Billetera tasks
	RetiroNotificar = "retiro:notificar"

	// Derivacion tasks
	DerivacionNotificar = "derivacion:notificar"
)
