package service

import (
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-api/internal/repository"
)

// NewEnrollmentTxStores builds the engine's per-transaction store factory
// from the concrete repositories.
func NewEnrollmentTxStores(enrollments *repository.EnrollmentRepository, carts *repository.CartRepository, audits *repository.AuditRepository) func(tx *sqlx.Tx) txStores {
	return func(tx *sqlx.Tx) txStores {
		return txStores{
			enrollments: enrollments.WithTx(tx),
			carts:       carts.WithTx(tx),
			audits:      audits.WithTx(tx),
		}
	}
}

// NewCartTxStores builds the cart service's per-transaction store factory.
func NewCartTxStores(carts *repository.CartRepository, enrollments *repository.EnrollmentRepository, audits *repository.AuditRepository) func(tx *sqlx.Tx) cartTxStores {
	return func(tx *sqlx.Tx) cartTxStores {
		return cartTxStores{
			carts:       carts.WithTx(tx),
			enrollments: enrollments.WithTx(tx),
			audits:      audits.WithTx(tx),
		}
	}
}

// NewApprovalTxStores builds the approval service's per-transaction store
// factory.
func NewApprovalTxStores(approvals *repository.ApprovalRepository, audits *repository.AuditRepository) func(tx *sqlx.Tx) approvalTxStores {
	return func(tx *sqlx.Tx) approvalTxStores {
		return approvalTxStores{
			approvals: approvals.WithTx(tx),
			audits:    audits.WithTx(tx),
		}
	}
}
