package descriptor

import "github.com/roach88/fedq/internal/ir"

// Service descriptor vocabulary.
const (
	Service            ir.IRI = ir.NamespaceFed + "Service"
	HasInputParameter  ir.IRI = ir.NamespaceFed + "hasInputParameter"
	HasOutputParameter ir.IRI = ir.NamespaceFed + "hasOutputParameter"
	HasParameter       ir.IRI = ir.NamespaceFed + "hasParameter"
	Name               ir.IRI = ir.NamespaceFed + "name"
	Optional           ir.IRI = ir.NamespaceFed + "optional"
	HasPattern         ir.IRI = ir.NamespaceFed + "pattern"
	Subject            ir.IRI = ir.NamespaceFed + "subject"
	Predicate          ir.IRI = ir.NamespaceFed + "predicate"
	Object             ir.IRI = ir.NamespaceFed + "object"
	VarName            ir.IRI = ir.NamespaceFed + "varName"
)
