package loader

// This file documents the wire shapes walked by loader.go. A packet
// node is any object carrying one or more of "context", "defaults", or
// "storylets"; everything else under "storylets" is a leaf storylet
// description. Leaf fields:
//
//	id              string, required, never inherited from defaults
//	redraw          "always" | "never" | non-negative number (0 == always)
//	condition       string, compiled as an expression
//	priority        number (fixed) or string (expression)
//	content         opaque, passed through verbatim
//	updateOnPlayed  object of string -> expression string
//	updateOnDrawn   object of string -> expression string
//
// All fields except id may be supplied by an enclosing "defaults"
// object; a leaf's own value always wins over an inherited one.
