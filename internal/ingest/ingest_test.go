package ingest

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRead(t *testing.T, data string) *Table {
	t.Helper()
	tbl, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	return tbl
}

func TestReadCSV(t *testing.T) {
	tbl := mustRead(t, "\ufeffa, b ,c\n1,\" two \",3\n4,5\n")

	assert.Equal(t, []string{"a", "b", "c"}, tbl.Header)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "two", tbl.Cell(tbl.Rows[0], "b"))
	assert.Equal(t, "", tbl.Cell(tbl.Rows[1], "c"))
	assert.Equal(t, "", tbl.Cell(tbl.Rows[0], "missing"))

	empty := mustRead(t, "")
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.Has("a"))
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1234.56", 1234.56, true},
		{"-10", -10, true},
		{"1.234,56", 1234.56, true},
		{"12,5", 12.5, true},
		{"abc", math.NaN(), false},
		{"inf", math.NaN(), false},
		{"+Inf", math.NaN(), false},
		{"-Infinity", math.NaN(), false},
		{"1e999", math.NaN(), false},
	}
	for _, tt := range tests {
		got, ok := parseFloat(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		if math.IsNaN(tt.want) {
			assert.True(t, math.IsNaN(got), tt.in)
			continue
		}
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, null := range []string{"", "nan", "NULL", "None"} {
		got, ok := parseFloat(null)
		assert.True(t, ok)
		assert.True(t, math.IsNaN(got), null)
	}
}

func TestParseInt(t *testing.T) {
	v, ok := parseInt("2024.0")
	assert.True(t, ok)
	assert.Equal(t, 2024, v)

	_, ok = parseInt("3.5")
	assert.False(t, ok)
	_, ok = parseInt("")
	assert.False(t, ok)
}

const expensesCSV = `txNomeParlamentar,cpf,txtFornecedor,txtCNPJCPF,vlrLiquido,txtDescricao,sgPartido,sgUF,numAno,numMes
Ana Souza,11111111111,POSTO BOA VIAGEM,12345678000190,250.00,COMBUSTÍVEIS E LUBRIFICANTES.,PA,SP,2024,1
Ana Souza,11111111111,GRÁFICA CENTRAL,,-30.5,DIVULGAÇÃO DA ATIVIDADE PARLAMENTAR.,PA,SP,2024,13
LIDERANÇA DO PA,,TÁXI AÉREO,98765432000110,5000,LOCAÇÃO OU FRETAMENTO DE AERONAVES,PA,NA,2024,2
Bruno Lima,22222222222,HOTEL PLAZA,55555555000155,,HOSPEDAGEM,PB,RJ,2025.0,3
`

func TestNormalizeExpenses(t *testing.T) {
	ex, err := NormalizeExpenses(mustRead(t, expensesCSV))
	require.NoError(t, err)

	require.Len(t, ex.Transactions, 3)
	first := ex.Transactions[0]
	assert.Equal(t, "Ana Souza", first.LegislatorName)
	assert.Equal(t, "11111111111", first.LegislatorTaxID)
	assert.Equal(t, "POSTO BOA VIAGEM", first.PayeeName)
	assert.Equal(t, "12345678000190", first.PayeeTaxID)
	assert.Equal(t, 250.0, first.Amount)
	assert.Equal(t, "PA", first.Party)
	assert.Equal(t, "SP", first.Region)
	assert.Equal(t, "2024-01", first.MonthKey())

	bruno := ex.Transactions[2]
	assert.True(t, math.IsNaN(bruno.Amount))
	assert.Equal(t, 2025, bruno.Year)

	assert.Equal(t, RowStats{
		SourceRows:        4,
		LeadershipDropped: 1,
		NullAmount:        1,
		NegativeAmount:    1,
		EmptyPayeeTaxID:   1,
		InvalidMonth:      1,
		MinYear:           2024,
		MaxYear:           2025,
	}, ex.Stats)

	assert.True(t, ex.Columns[ColPayeeTaxID])
	assert.Equal(t, "vlrLiquido", ex.Resolved[ColAmount])
}

func TestNormalizeExpenses_Aliases(t *testing.T) {
	data := "nomeParlamentar,fornecedor,vlrDocumento,numAno,numMes\nCarla Dias,PADARIA,12.5,2023,7\n"

	ex, err := NormalizeExpenses(mustRead(t, data))
	require.NoError(t, err)
	require.Len(t, ex.Transactions, 1)

	tx := ex.Transactions[0]
	assert.Equal(t, "Carla Dias", tx.LegislatorName)
	assert.Equal(t, "PADARIA", tx.PayeeName)
	assert.Equal(t, 12.5, tx.Amount)
	assert.False(t, ex.Columns[ColLegislatorTaxID])
	assert.False(t, ex.Columns[ColPayeeTaxID])
	assert.Equal(t, 0, ex.Stats.EmptyPayeeTaxID)
}

func TestNormalizeExpenses_MissingColumns(t *testing.T) {
	_, err := NormalizeExpenses(mustRead(t, "txNomeParlamentar,numAno\nAna,2024\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "vlrLiquido or vlrDocumento")
	assert.Contains(t, err.Error(), "numMes")
}

func TestValidateTable(t *testing.T) {
	r := ValidateTable(mustRead(t, "foo,numAno\n1,2024\n"))
	assert.False(t, r.OK())
	assert.Equal(t, []string{
		"Missing required column: txNomeParlamentar or nomeParlamentar",
		"Missing required column: vlrLiquido or vlrDocumento",
		"Missing required column: numMes",
	}, r.Errors)

	ok := ValidateTable(mustRead(t, expensesCSV))
	assert.True(t, ok.OK())
	assert.Empty(t, ok.Warnings)
}

func TestValidate_WarningsNeverBlock(t *testing.T) {
	data := expensesCSV + "Carla Dias,33333333333,LOJA,1,10,OUTROS,PC,BA,1999,5\n"
	ex, err := NormalizeExpenses(mustRead(t, data))
	require.NoError(t, err)

	r := Validate(ex)

	assert.True(t, r.OK())
	assert.Equal(t, []string{
		"Dropped 1 party leadership records without legislator tax id",
		"Found 1 negative values in vlrLiquido",
		"Found 1 null values in vlrLiquido (25.0%)",
		"Unusual year range: 1999-2025",
		"Found 1 records with invalid month values",
		"Found 1 records with empty payee tax id (25.0%)",
	}, r.Warnings)
}

func TestValidate_NonFiniteAmountIsWarning(t *testing.T) {
	data := "txNomeParlamentar,txtFornecedor,vlrLiquido,sgPartido,sgUF,numAno,numMes\n" +
		"Ana Souza,POSTO,100,PA,SP,2024,1\n" +
		"Ana Souza,POSTO,inf,PA,SP,2024,2\n"
	ex, err := NormalizeExpenses(mustRead(t, data))
	require.NoError(t, err)

	require.Len(t, ex.Transactions, 2)
	assert.True(t, math.IsNaN(ex.Transactions[1].Amount))
	assert.False(t, ex.Transactions[1].HasAmount())
	assert.Equal(t, 1, ex.Stats.UnparsedAmount)

	r := Validate(ex)
	assert.True(t, r.OK())
	assert.Contains(t, r.Warnings, "Found 1 unparseable values in vlrLiquido")
}

func TestReadConcentration(t *testing.T) {
	tbl := mustRead(t, "Deputado,HHI,Nivel_Concentracao\nAna Souza,3200.5,muito alto\n,100,baixo\nBruno Lima,x,\n")

	rows := ReadConcentration(tbl)

	require.Len(t, rows, 2)
	assert.Equal(t, "Ana Souza", rows[0].LegislatorName)
	assert.Equal(t, 3200.5, rows[0].Index)
	assert.Equal(t, "MUITO ALTO", rows[0].Label)
	assert.True(t, math.IsNaN(rows[1].Index))
	assert.Equal(t, "MEDIO", rows[1].Label)

	assert.Nil(t, ReadConcentration(mustRead(t, "x,y\n1,2\n")))
}

func TestReadFraudMatrix(t *testing.T) {
	tbl := mustRead(t, "id,Deputado,Partido,UF,Score_Benford,Chi2,Round_Pct,HHI,CNPJ_Mismatches,Weekend_Pct,Risk_Score_Final,Risk_Category\n"+
		"7,Ana Souza,PA,SP,0.8,31.2,35,2700,2,4.5,0.81,alto\n")

	rows := ReadFraudMatrix(tbl)

	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 7, r.ID)
	assert.Equal(t, 0.8, r.BenfordScore)
	assert.Equal(t, 2, r.TaxIDMismatch)
	assert.Equal(t, "ALTO", r.RiskCategory)
}

func TestReadMismatches_PortugueseHeaders(t *testing.T) {
	tbl := mustRead(t, "cnpj,fornecedor,razao_social,categoria,cnae_principal,valor_total,num_transacoes,num_deputados,motivo,uf\n"+
		"123,AUTO POSTO,AUTO POSTO LTDA,HOSPEDAGEM,4731-8/00,1500.5,3,2,atividade incompatível,GO\n")

	rows := ReadMismatches(tbl)

	require.Len(t, rows, 1)
	assert.Equal(t, "AUTO POSTO", rows[0].SupplierName)
	assert.Equal(t, "HOSPEDAGEM", rows[0].ExpenseCategory)
	assert.Equal(t, 1500.5, rows[0].TotalValue)
	assert.Equal(t, 3, rows[0].TransactionCount)
	assert.Equal(t, 2, rows[0].LegislatorCount)
	assert.Equal(t, "atividade incompatível", rows[0].Reason)
}

func TestReadEnrichment(t *testing.T) {
	tbl := mustRead(t, "nome,escolaridade,profissao,birthYear,age,mandateCount,totalEvents,uniqueEvents,avgAttendanceRate,attendance2023,attendance2024,attendance2025\n"+
		"Ana Souza,Superior,,1970.0,54,2,100,90,88.5,30,40,30\n")

	rows := ReadEnrichment(tbl)

	require.Len(t, rows, 1)
	e := rows[0]
	require.NotNil(t, e.Education)
	assert.Equal(t, "Superior", *e.Education)
	assert.Nil(t, e.Profession)
	require.NotNil(t, e.BirthYear)
	assert.Equal(t, 1970, *e.BirthYear)
	assert.Equal(t, 2, e.MandateCount)
	assert.Equal(t, 88.5, e.AttendanceRate)
	assert.Equal(t, 40, e.Events2024)
}
