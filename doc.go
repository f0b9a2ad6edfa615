// Package simpledb is a thin layer over database/sql for hand written SQL.
//
// Statements are built by appending fragments and their arguments to a [Sql]:
//
//	affected, err := db.GenSql().
//		Append("UPDATE article").
//		Append("SET title = ?", "new title").
//		Append("WHERE id IN ?", []int{1, 2, 3}).
//		Update(ctx)
//
// A slice argument, or one made with [In], expands to a parenthesized list
// of placeholders. Rows are decoded into structs by column name with
// [SelectRow] and [SelectRows], or read as maps and scalars.
//
// A [SimpleDb] handle owns a single session. In dev mode every statement is
// printed with its arguments and how it went.
package simpledb
