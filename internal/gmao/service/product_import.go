package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"gorm.io/gorm"
)

// 导入列顺序
var productImportHeaders = []string{
	"Code", "Nom", "Prix", "Stock minimum", "Fournisseur", "Référence fournisseur", "Emplacement",
}

// ImportResult 产品导入结果
type ImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// parseProductRow 解析一行产品数据，至少需要编码与名称
func parseProductRow(row []string) (*entity.Product, error) {
	col := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	p := &entity.Product{
		Code:              col(0),
		Name:              col(1),
		Price:             decimal.Zero,
		SupplierName:      col(4),
		SupplierReference: col(5),
		LocationCode:      col(6),
	}
	if raw := col(2); raw != "" {
		price, err := decimal.NewFromString(strings.ReplaceAll(strings.ReplaceAll(raw, " ", ""), ",", "."))
		if err != nil {
			return nil, fmt.Errorf("invalid price %q", raw)
		}
		p.Price = price
	}
	if raw := col(3); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid minimum stock %q", raw)
		}
		p.MinimumStock = n
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	return p, nil
}

func isHeaderRow(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), productImportHeaders[0])
}

// importRows 逐行解析并按编码批量更新或创建
func (s *StockService) importRows(ctx context.Context, actorID string, rows [][]string) (*ImportResult, error) {
	result := &ImportResult{}
	byCode := make(map[string]int)
	var products []entity.Product
	for i, row := range rows {
		if i == 0 && isHeaderRow(row) {
			continue
		}
		if len(strings.Join(row, "")) == 0 {
			continue
		}
		p, err := parseProductRow(row)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}
		// 同一文件中重复的编码以最后一行为准
		if idx, ok := byCode[p.Code]; ok {
			products[idx] = *p
			continue
		}
		byCode[p.Code] = len(products)
		products = append(products, *p)
	}

	if len(products) == 0 {
		return result, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		if err := repos.Stock.UpsertProducts(ctx, products); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "product", "import", "import", fmt.Sprintf("%d products", len(products)), actorID)
	})
	if err != nil {
		return nil, err
	}
	result.Imported = len(products)
	s.events.invalidate()
	s.logger.Info("products imported", zap.Int("imported", result.Imported), zap.Int("failed", result.Failed))
	return result, nil
}

// ImportProductsExcel 从 xlsx 第一个工作表导入产品
func (s *StockService) ImportProductsExcel(ctx context.Context, actorID string, f *excelize.File) (*ImportResult, error) {
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read excel: %w", err)
	}
	return s.importRows(ctx, actorID, rows)
}

// ImportProductsCSV 从 CSV 导入产品，支持 ; 或 , 分隔，非 UTF-8 内容按 Windows-1252 解码
func (s *StockService) ImportProductsCSV(ctx context.Context, actorID string, r io.Reader) (*ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var reader io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		reader = transform.NewReader(reader, charmap.Windows1252.NewDecoder())
	}
	br := bufio.NewReader(reader)
	first, _ := br.Peek(4096)

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if firstLine, _, _ := bytes.Cut(first, []byte("\n")); bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		cr.Comma = ';'
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, validationf("file", "invalid csv: %v", err)
	}
	return s.importRows(ctx, actorID, rows)
}

// ImportTemplate 生成产品导入模板
func (s *StockService) ImportTemplate() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Produits"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	for i, h := range productImportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
		f.SetColWidth(sheet, col, col, 18)
	}
	example := []interface{}{"FLT-001", "Filtre à huile", "12,50", 5, "ACME", "AC-4411", "A1-03"}
	for i, v := range example {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, col+"2", v)
	}
	return f, nil
}
