/*
Package modifier implements the attribute expression language of format files.

An attribute value is described by a modifier expression:

	uid = lowercase(combine(file("first.txt"), ".", file("last.txt")))

The supported modifiers are:

  - file("path"): a random line of a value source, drawn on every evaluation
  - combine(a, b, ...): the concatenation of its arguments, no separator
  - lowercase(a), uppercase(a): case conversion of the resolved argument

String literals use double quotes and the escapes \" \\ \/ \b \f \n \r \t and
\uXXXX. A literal inside combine is always literal text; only file() reads a
value source.

Expressions are parsed once when the format file is loaded. File arguments
are bound to loaded sources at parse time, so a parsed Expr always evaluates
successfully.
*/
package modifier
