// common.go
//
// Case-management data service for investigative teams
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of casefile.
// casefile is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// casefile is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with casefile.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/types"
	"github.com/localnerve/casefile/internal/utils"
)

// parseBody decodes the JSON request body into out
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return types.Invalid("request body is required")
	}
	if err := c.BodyParser(out); err != nil {
		return types.Invalid("invalid request body: %v", err)
	}
	return nil
}

// fail renders err with the envelope for the named operation
func fail(c *fiber.Ctx, err error, errorType string) error {
	return utils.ServiceError(c, err, errorType)
}

// ok sends data with status 200
func ok(c *fiber.Ctx, data interface{}) error {
	return utils.SuccessResponse(c, data, fiber.StatusOK)
}

// created sends data with status 201
func created(c *fiber.Ctx, data interface{}) error {
	return utils.SuccessResponse(c, data, fiber.StatusCreated)
}

// deleted sends the delete confirmation envelope
func deleted(c *fiber.Ctx, affectedRows int64) error {
	return utils.DeleteSuccessResponse(c, affectedRows)
}
