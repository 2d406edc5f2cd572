package engine

import (
	"fmt"
	"strings"

	"github.com/relstore/relstore/internal/record"
	"github.com/relstore/relstore/internal/relerr"
)

type parser struct {
	toks []rawToken
	pos  int
}

// Parse lexes and parses one statement. Trailing semicolons are accepted
// and ignored.
func Parse(src string) (Statement, error) {
	src = strings.TrimSpace(src)
	src = strings.TrimSuffix(src, ";")
	lx := newLexer(src)
	var toks []rawToken
	for {
		t, err := lx.next()
		if err != nil {
			return nil, relerr.Wrap(relerr.Parse, "parse", "", err)
		}
		if t.kind == tokEOF {
			break
		}
		toks = append(toks, t)
	}
	p := &parser{toks: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, relerr.Wrap(relerr.Parse, "parse", "", err)
	}
	if !p.atEnd() {
		return nil, relerr.Wrap(relerr.Parse, "parse", "", fmt.Errorf("unexpected trailing input at %q", p.peek().raw))
	}
	return stmt, nil
}

func (p *parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() rawToken {
	if p.atEnd() {
		return rawToken{token: token{kind: tokEOF}}
	}
	return p.toks[p.pos]
}

func (p *parser) peekN(n int) rawToken {
	if p.pos+n >= len(p.toks) {
		return rawToken{token: token{kind: tokEOF}}
	}
	return p.toks[p.pos+n]
}

func (p *parser) advance() rawToken {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == kw
}

func (p *parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return fmt.Errorf("expected %s, got %q", kw, p.peek().raw)
	}
	p.advance()
	return nil
}

func (p *parser) expectPunct(s string) error {
	t := p.peek()
	if t.kind != tokPunct || t.text != s {
		return fmt.Errorf("expected %q, got %q", s, t.raw)
	}
	p.advance()
	return nil
}

func (p *parser) expectIdent() (string, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return "", fmt.Errorf("expected identifier, got %q", t.raw)
	}
	p.advance()
	return t.raw, nil
}

func (p *parser) parseStatement() (Statement, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return nil, fmt.Errorf("expected statement keyword, got %q", t.raw)
	}
	switch t.text {
	case "CREATE":
		return p.parseCreate()
	case "DROP":
		return p.parseDrop()
	case "USE":
		p.advance()
		if err := p.expectKeyword("DATABASE"); err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		return UseDatabase{Name: name}, err
	case "SHOW":
		return p.parseShow()
	case "DESC", "DESCRIBE":
		p.advance()
		name, err := p.expectIdent()
		return DescTable{Name: name}, err
	case "LOAD":
		return p.parseLoadData()
	case "INSERT":
		return p.parseInsert()
	case "DELETE":
		return p.parseDelete()
	case "UPDATE":
		return p.parseUpdate()
	case "SELECT":
		return p.parseSelect()
	case "ALTER":
		return p.parseAlter()
	default:
		return nil, fmt.Errorf("unrecognized statement %q", t.raw)
	}
}

func (p *parser) parseCreate() (Statement, error) {
	p.advance() // CREATE
	switch {
	case p.isKeyword("DATABASE"):
		p.advance()
		name, err := p.expectIdent()
		return CreateDatabase{Name: name}, err
	case p.isKeyword("TABLE"):
		p.advance()
		return p.parseCreateTableBody()
	default:
		return nil, fmt.Errorf("expected DATABASE or TABLE after CREATE, got %q", p.peek().raw)
	}
}

func (p *parser) parseDrop() (Statement, error) {
	p.advance() // DROP
	switch {
	case p.isKeyword("DATABASE"):
		p.advance()
		name, err := p.expectIdent()
		return DropDatabase{Name: name}, err
	case p.isKeyword("TABLE"):
		p.advance()
		name, err := p.expectIdent()
		return DropTable{Name: name}, err
	default:
		return nil, fmt.Errorf("expected DATABASE or TABLE after DROP, got %q", p.peek().raw)
	}
}

func (p *parser) parseShow() (Statement, error) {
	p.advance() // SHOW
	switch {
	case p.isKeyword("DATABASES"):
		p.advance()
		return ShowDatabases{}, nil
	case p.isKeyword("TABLES"):
		p.advance()
		return ShowTables{}, nil
	case p.isKeyword("INDEXES"):
		p.advance()
		var table string
		if p.isKeyword("FROM") || p.isKeyword("IN") {
			p.advance()
			t, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			table = t
		}
		return ShowIndexes{Table: table}, nil
	default:
		return nil, fmt.Errorf("expected DATABASES, TABLES, or INDEXES after SHOW, got %q", p.peek().raw)
	}
}

func typeFromName(name string) (record.Type, bool) {
	switch name {
	case "INT", "INTEGER":
		return record.TInt, true
	case "FLOAT", "DOUBLE", "REAL":
		return record.TFloat, true
	case "VARCHAR", "CHAR", "TEXT":
		return record.TVarchar, true
	case "DATE":
		return record.TDate, true
	default:
		return 0, false
	}
}

func (p *parser) parseCreateTableBody() (Statement, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	ct := CreateTable{Name: name}
	for {
		if p.isKeyword("PRIMARY") || p.isKeyword("UNIQUE") || p.isKeyword("FOREIGN") {
			c, err := p.parseTableConstraint()
			if err != nil {
				return nil, err
			}
			ct.Constraints = append(ct.Constraints, c)
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			ct.Columns = append(ct.Columns, col)
		}
		if p.peek().kind == tokPunct && p.peek().text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return ct, nil
}

func (p *parser) parseColumnDef() (ColumnDef, error) {
	name, err := p.expectIdent()
	if err != nil {
		return ColumnDef{}, err
	}
	typeName, err := p.expectIdent()
	if err != nil {
		return ColumnDef{}, err
	}
	typ, ok := typeFromName(typeName)
	if !ok {
		return ColumnDef{}, fmt.Errorf("unknown column type %q", typeName)
	}
	col := ColumnDef{Name: name, Type: typ, Nullable: true}
	if typ == record.TVarchar {
		if p.peek().kind == tokPunct && p.peek().text == "(" {
			p.advance()
			lenTok := p.advance()
			n, _, _, err := parseNumberLiteral(lenTok.text)
			if err != nil {
				return ColumnDef{}, fmt.Errorf("invalid varchar length %q", lenTok.raw)
			}
			col.Len = int(n)
			if err := p.expectPunct(")"); err != nil {
				return ColumnDef{}, err
			}
		} else {
			col.Len = 255
		}
	}
	for {
		switch {
		case p.isKeyword("NOT"):
			p.advance()
			if err := p.expectKeyword("NULL"); err != nil {
				return ColumnDef{}, err
			}
			col.Nullable = false
		case p.isKeyword("NULL"):
			p.advance()
			col.Nullable = true
		case p.isKeyword("DEFAULT"):
			p.advance()
			v, err := p.parseLiteralValue(typ, col.Len)
			if err != nil {
				return ColumnDef{}, err
			}
			col.Default = &v
		default:
			return col, nil
		}
	}
}

func (p *parser) parseIdentList() ([]string, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, name)
		if p.peek().kind == tokPunct && p.peek().text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return cols, nil
}

func (p *parser) parseTableConstraint() (ConstraintDef, error) {
	switch {
	case p.isKeyword("PRIMARY"):
		p.advance()
		if err := p.expectKeyword("KEY"); err != nil {
			return ConstraintDef{}, err
		}
		cols, err := p.parseIdentList()
		return ConstraintDef{Kind: "PRIMARY KEY", Columns: cols}, err
	case p.isKeyword("UNIQUE"):
		p.advance()
		cols, err := p.parseIdentList()
		return ConstraintDef{Kind: "UNIQUE", Columns: cols}, err
	case p.isKeyword("FOREIGN"):
		p.advance()
		if err := p.expectKeyword("KEY"); err != nil {
			return ConstraintDef{}, err
		}
		cols, err := p.parseIdentList()
		if err != nil {
			return ConstraintDef{}, err
		}
		if err := p.expectKeyword("REFERENCES"); err != nil {
			return ConstraintDef{}, err
		}
		refTable, err := p.expectIdent()
		if err != nil {
			return ConstraintDef{}, err
		}
		refCols, err := p.parseIdentList()
		if err != nil {
			return ConstraintDef{}, err
		}
		return ConstraintDef{Kind: "FOREIGN KEY", Columns: cols, RefTable: refTable, RefColumns: refCols}, nil
	default:
		return ConstraintDef{}, fmt.Errorf("expected table constraint, got %q", p.peek().raw)
	}
}

func (p *parser) parseLiteralValue(typ record.Type, length int) (record.Value, error) {
	t := p.advance()
	switch t.kind {
	case tokString:
		if typ == record.TDate {
			return record.DateFromText(t.text)
		}
		return record.Varchar(t.text), nil
	case tokNumber:
		i, f, isFloat, err := parseNumberLiteral(t.text)
		if err != nil {
			return record.Value{}, err
		}
		if isFloat {
			return record.Float(f), nil
		}
		if typ == record.TFloat {
			return record.Float(float64(i)), nil
		}
		return record.Int(i), nil
	case tokIdent:
		if t.text == "NULL" {
			return record.NullValue(typ), nil
		}
		return record.Value{}, fmt.Errorf("unexpected token %q in literal position", t.raw)
	default:
		return record.Value{}, fmt.Errorf("unexpected token %q in literal position", t.raw)
	}
}

func (p *parser) parseLoadData() (Statement, error) {
	p.advance() // LOAD
	if err := p.expectKeyword("DATA"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INFILE"); err != nil {
		return nil, err
	}
	pathTok := p.advance()
	if pathTok.kind != tokString {
		return nil, fmt.Errorf("expected quoted file path, got %q", pathTok.raw)
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	delim := ","
	if p.isKeyword("FIELDS") {
		p.advance()
		if err := p.expectKeyword("TERMINATED"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		dtok := p.advance()
		if dtok.kind != tokString {
			return nil, fmt.Errorf("expected quoted delimiter, got %q", dtok.raw)
		}
		delim = dtok.text
	}
	return LoadDataInfile{Path: pathTok.text, Table: table, Delimiter: delim}, nil
}

func (p *parser) parseInsert() (Statement, error) {
	p.advance() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	var rows [][]Expr
	for {
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if p.peek().kind == tokPunct && p.peek().text == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.peek().kind == tokPunct && p.peek().text == "," {
			p.advance()
			continue
		}
		break
	}
	return InsertInto{Table: table, Rows: rows}, nil
}

// parseExpr parses a literal or bare column reference; there is no general
// expression grammar.
func (p *parser) parseExpr() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokString, tokNumber:
		p.advance()
		if t.kind == tokString {
			return Expr{Literal: litPtr(record.Varchar(t.text))}, nil
		}
		i, f, isFloat, err := parseNumberLiteral(t.text)
		if err != nil {
			return Expr{}, err
		}
		if isFloat {
			return Expr{Literal: litPtr(record.Float(f))}, nil
		}
		return Expr{Literal: litPtr(record.Int(i))}, nil
	case tokIdent:
		if t.text == "NULL" {
			p.advance()
			return Expr{Literal: litPtr(record.Value{Null: true})}, nil
		}
		tableQ, col, err := p.parseQualifiedColumn()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Table: tableQ, Column: col}, nil
	default:
		return Expr{}, fmt.Errorf("unexpected token %q in expression", t.raw)
	}
}

func litPtr(v record.Value) *record.Value { return &v }

func (p *parser) parseDelete() (Statement, error) {
	p.advance() // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var where []WherePredicate
	if p.isKeyword("WHERE") {
		p.advance()
		where, err = p.parseWhereClauses()
		if err != nil {
			return nil, err
		}
	}
	return DeleteFrom{Table: table, Where: where}, nil
}

func (p *parser) parseUpdate() (Statement, error) {
	p.advance() // UPDATE
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	var sets []SetClause
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sets = append(sets, SetClause{Column: col, Value: val})
		if p.peek().kind == tokPunct && p.peek().text == "," {
			p.advance()
			continue
		}
		break
	}
	var where []WherePredicate
	if p.isKeyword("WHERE") {
		p.advance()
		where, err = p.parseWhereClauses()
		if err != nil {
			return nil, err
		}
	}
	return UpdateTable{Table: table, Sets: sets, Where: where}, nil
}

func (p *parser) parseQualifiedColumn() (table, column string, err error) {
	name, err := p.expectIdent()
	if err != nil {
		return "", "", err
	}
	if p.peek().kind == tokPunct && p.peek().text == "." {
		p.advance()
		col, err := p.expectIdent()
		return name, col, err
	}
	return "", name, nil
}

func (p *parser) parseWhereClauses() ([]WherePredicate, error) {
	var preds []WherePredicate
	for {
		pred, err := p.parseWherePredicate()
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
		if p.isKeyword("AND") {
			p.advance()
			continue
		}
		break
	}
	return preds, nil
}

func (p *parser) parseWherePredicate() (WherePredicate, error) {
	tableQ, col, err := p.parseQualifiedColumn()
	if err != nil {
		return WherePredicate{}, err
	}
	pred := WherePredicate{Table: tableQ, Column: col}

	switch {
	case p.isKeyword("IS"):
		p.advance()
		if p.isKeyword("NOT") {
			p.advance()
			pred.Op = OpIsNotNull
		} else {
			pred.Op = OpIsNull
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return WherePredicate{}, err
		}
		return pred, nil

	case p.isKeyword("LIKE"):
		p.advance()
		v, err := p.parseExpr()
		if err != nil {
			return WherePredicate{}, err
		}
		pred.Op = OpLike
		pred.Value = v
		return pred, nil

	case p.isKeyword("IN"):
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return WherePredicate{}, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return WherePredicate{}, err
			}
			if e.Literal == nil {
				return WherePredicate{}, fmt.Errorf("IN list must contain literals")
			}
			pred.List = append(pred.List, *e.Literal)
			if p.peek().kind == tokPunct && p.peek().text == "," {
				p.advance()
				continue
			}
			break
		}
		pred.Op = OpIn
		return pred, p.expectPunct(")")

	default:
		opTok := p.advance()
		if opTok.kind != tokPunct {
			return WherePredicate{}, fmt.Errorf("expected comparison operator, got %q", opTok.raw)
		}
		switch opTok.text {
		case "=":
			pred.Op = OpEq
		case "<>", "!=":
			pred.Op = OpNe
		case "<":
			pred.Op = OpLt
		case "<=":
			pred.Op = OpLe
		case ">":
			pred.Op = OpGt
		case ">=":
			pred.Op = OpGe
		default:
			return WherePredicate{}, fmt.Errorf("unknown operator %q", opTok.raw)
		}
		v, err := p.parseExpr()
		if err != nil {
			return WherePredicate{}, err
		}
		pred.Value = v
		return pred, nil
	}
}

func (p *parser) parseSelect() (Statement, error) {
	p.advance() // SELECT
	sel := SelectStatement{}
	selectors, err := p.parseSelectorList()
	if err != nil {
		return nil, err
	}
	sel.Selectors = selectors
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		sel.Tables = append(sel.Tables, name)
		if p.peek().kind == tokPunct && p.peek().text == "," {
			p.advance()
			continue
		}
		break
	}
	if p.isKeyword("WHERE") {
		p.advance()
		where, err := p.parseWhereClauses()
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}
	if p.isKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		sel.GroupBy = col
	}
	if p.isKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		ob := OrderBy{Column: col}
		if p.isKeyword("DESC") {
			p.advance()
			ob.Desc = true
		} else if p.isKeyword("ASC") {
			p.advance()
		}
		sel.OrderBy = &ob
	}
	if p.isKeyword("LIMIT") {
		p.advance()
		n, err := p.expectIntLiteral()
		if err != nil {
			return nil, err
		}
		sel.Limit = &n
		if p.isKeyword("OFFSET") {
			p.advance()
			k, err := p.expectIntLiteral()
			if err != nil {
				return nil, err
			}
			sel.Offset = &k
		}
	}
	return sel, nil
}

func (p *parser) expectIntLiteral() (int, error) {
	t := p.advance()
	if t.kind != tokNumber {
		return 0, fmt.Errorf("expected integer, got %q", t.raw)
	}
	i, _, isFloat, err := parseNumberLiteral(t.text)
	if err != nil || isFloat {
		return 0, fmt.Errorf("expected integer, got %q", t.raw)
	}
	return int(i), nil
}

func (p *parser) parseSelectorList() ([]Selector, error) {
	var sels []Selector
	for {
		s, err := p.parseSelector()
		if err != nil {
			return nil, err
		}
		sels = append(sels, s)
		if p.peek().kind == tokPunct && p.peek().text == "," {
			p.advance()
			continue
		}
		break
	}
	return sels, nil
}

func (p *parser) parseSelector() (Selector, error) {
	if p.peek().kind == tokPunct && p.peek().text == "*" {
		p.advance()
		return Selector{Star: true}, nil
	}
	t := p.peek()
	if t.kind == tokIdent && (t.text == "COUNT" || t.text == "SUM" || t.text == "AVG" || t.text == "MIN" || t.text == "MAX") {
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return Selector{}, err
		}
		sel := Selector{Aggregate: t.text}
		if p.peek().kind == tokPunct && p.peek().text == "*" {
			p.advance()
			sel.Column = "*"
		} else {
			tableQ, col, err := p.parseQualifiedColumn()
			if err != nil {
				return Selector{}, err
			}
			sel.Table, sel.Column = tableQ, col
		}
		if err := p.expectPunct(")"); err != nil {
			return Selector{}, err
		}
		return sel, nil
	}
	tableQ, col, err := p.parseQualifiedColumn()
	if err != nil {
		return Selector{}, err
	}
	return Selector{Table: tableQ, Column: col}, nil
}

func (p *parser) parseAlter() (Statement, error) {
	p.advance() // ALTER
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	switch {
	case p.isKeyword("ADD"):
		p.advance()
		switch {
		case p.isKeyword("INDEX"):
			p.advance()
			return p.parseAddIndex(table, false)
		case p.isKeyword("UNIQUE"):
			p.advance()
			if p.isKeyword("INDEX") {
				p.advance()
			}
			return p.parseAddIndex(table, true)
		case p.isKeyword("PRIMARY"):
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			cols, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			return AlterAddPrimaryKey{Table: table, Columns: cols}, nil
		case p.isKeyword("FOREIGN"):
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			cols, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			if err := p.expectKeyword("REFERENCES"); err != nil {
				return nil, err
			}
			refTable, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			refCols, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			return AlterAddForeignKey{Table: table, Columns: cols, RefTable: refTable, RefColumns: refCols}, nil
		default:
			return nil, fmt.Errorf("expected INDEX, UNIQUE, PRIMARY KEY, or FOREIGN KEY after ALTER TABLE ... ADD, got %q", p.peek().raw)
		}
	case p.isKeyword("DROP"):
		p.advance()
		switch {
		case p.isKeyword("INDEX"):
			p.advance()
			name, err := p.expectIdent()
			return AlterDropIndex{Table: table, Index: name}, err
		case p.isKeyword("PRIMARY"):
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			return AlterDropPrimaryKey{Table: table}, nil
		case p.isKeyword("FOREIGN"):
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			cols, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			return AlterDropForeignKey{Table: table, Columns: cols}, nil
		case p.isKeyword("UNIQUE"):
			p.advance()
			cols, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			return AlterDropUnique{Table: table, Columns: cols}, nil
		default:
			return nil, fmt.Errorf("expected INDEX, PRIMARY KEY, FOREIGN KEY, or UNIQUE after ALTER TABLE ... DROP, got %q", p.peek().raw)
		}
	default:
		return nil, fmt.Errorf("expected ADD or DROP after ALTER TABLE name, got %q", p.peek().raw)
	}
}

func (p *parser) parseAddIndex(table string, unique bool) (Statement, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseIdentList()
	if err != nil {
		return nil, err
	}
	return AlterAddIndex{Table: table, Index: name, Columns: cols, Unique: unique}, nil
}
